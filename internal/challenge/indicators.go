package challenge

// Selector and phrase tables used to recognize interstitial pages. Grouped by
// what they detect rather than by vendor, since several anti-bot products
// reuse the same widget markup.

// TurnstileSelectors match the Cloudflare Turnstile widget.
var TurnstileSelectors = []string{
	".cf-turnstile",
	"iframe[src*='challenges.cloudflare.com']",
	"#turnstile-widget",
	"input[name='cf-turnstile-response']",
}

// CaptchaSelectors match third party captcha widgets embedded in a challenge.
var CaptchaSelectors = []string{
	"iframe[src*='hcaptcha.com']",
	"iframe[src*='recaptcha']",
	".g-recaptcha",
	".h-captcha",
	"#captcha-form",
}

// CheckboxSelectors match the clickable verification checkbox on managed
// challenge pages.
var CheckboxSelectors = []string{
	"input[type='checkbox']",
	"#challenge-stage input",
	".ctp-checkbox-label input",
	"label.cb-lb input",
}

// ChallengeContainerSelectors match the structural markup of an in-progress
// JS challenge.
var ChallengeContainerSelectors = []string{
	"#challenge-running",
	"#challenge-form",
	"#challenge-stage",
	".cf-browser-verification",
	"#cf-challenge-running",
}

// VerifyButtonSelectors match explicit "verify" buttons some challenge
// variants render instead of a checkbox.
var VerifyButtonSelectors = []string{
	"#challenge-stage button",
	"input[type='button'][value*='Verify']",
	"button[type='submit']",
}

// GenericInteractiveSelectors match any remaining interactive element scoped
// to the challenge container, the last resort before keyboard navigation.
var GenericInteractiveSelectors = []string{
	"#challenge-stage a",
	"#challenge-stage [role='button']",
	"#challenge-form input",
	"#challenge-form a",
}

// challengePhrases are interstitial texts in the languages Cloudflare
// actually serves them in.
var challengePhrases = []string{
	// English
	"checking your browser",
	"just a moment",
	"verify you are human",
	"verifying you are human",
	"needs to review the security of your connection",
	// Italian
	"un momento",
	"verifica di essere un essere umano",
	"controllo del browser",
	// Spanish
	"comprobando su navegador",
	"verifique que usted es un ser humano",
	"un momento, por favor",
	// French
	"verification de votre navigateur",
	"vérification de votre navigateur",
	"confirmez que vous êtes un humain",
	// German
	"überprüfung ihres browsers",
	"bestätigen sie, dass sie ein mensch sind",
	"einen moment",
	// URL tokens left behind by challenge redirects.
	"/cdn-cgi/challenge-platform",
	"__cf_chl",
}

// blockPhrases indicate a hard denial rather than a solvable challenge.
var blockPhrases = []string{
	"access denied",
	"you have been blocked",
	"sorry, you have been blocked",
	"attention required",
	"error 1020",
	"error 1015",
	"this website is using a security service to protect itself",
	"the owner of this website has banned your access",
}

// waitingRoomPhrases indicate a virtual queue rather than a challenge.
var waitingRoomPhrases = []string{
	"waiting room",
	"you are now in line",
	"your estimated wait time",
	"thank you for waiting",
	"we are experiencing high traffic",
}

// shortPageKeywords back the heuristic for suspiciously short pages that
// carry challenge-flavored vocabulary.
var shortPageKeywords = []string{
	"check",
	"secure",
	"wait",
	"human",
	"utente",
	"security",
	"challenge",
}
