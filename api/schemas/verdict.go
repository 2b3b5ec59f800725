package schemas

// ChallengeVerdict classifies the adversarial state of a loaded page.
// The set is closed; the bypass dispatcher switches exhaustively over it so
// that adding a verdict without a strategy is visible at review time.
type ChallengeVerdict string

const (
	VerdictClean                 ChallengeVerdict = "clean"
	VerdictGenericBlock          ChallengeVerdict = "generic_block"
	VerdictCloudflareJSChallenge ChallengeVerdict = "cloudflare_js_challenge"
	VerdictCloudflareTurnstile   ChallengeVerdict = "cloudflare_turnstile"
	VerdictCloudflareCaptcha     ChallengeVerdict = "cloudflare_captcha"
	VerdictCloudflareWaitingRoom ChallengeVerdict = "cloudflare_waiting_room"
	VerdictGenericCaptcha        ChallengeVerdict = "generic_captcha"
	VerdictUnknown               ChallengeVerdict = "unknown"
)

// IsChallenge reports whether the verdict represents any adversarial state.
func (v ChallengeVerdict) IsChallenge() bool {
	return v != VerdictClean
}

// IsCloudflare reports whether the verdict is one of the Cloudflare family.
// The orchestrator applies in-place sub-attempts only to these; everything
// else retries with a fresh session instead.
func (v ChallengeVerdict) IsCloudflare() bool {
	switch v {
	case VerdictCloudflareJSChallenge, VerdictCloudflareTurnstile,
		VerdictCloudflareCaptcha, VerdictCloudflareWaitingRoom:
		return true
	}
	return false
}

// IsCaptcha reports whether the verdict requires an external solver.
func (v ChallengeVerdict) IsCaptcha() bool {
	return v == VerdictCloudflareCaptcha || v == VerdictCloudflareTurnstile || v == VerdictGenericCaptcha
}
