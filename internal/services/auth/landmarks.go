package auth

// LoggedInLandmarks are elements only rendered for a signed-in member.
// Any one of them confirms a session.
var LoggedInLandmarks = []string{
	"#global-nav",
	".global-nav__me",
	".feed-identity-module",
	`a[href*="/me"]`,
}

// ChallengePathFragments mark login and security-challenge pages. A page on
// one of these paths is never treated as signed in, whatever it renders.
var ChallengePathFragments = []string{
	"/login",
	"/uas/login",
	"/checkpoint",
	"/challenge",
}

// Login form inputs
const (
	UsernameSelector = "#username"
	PasswordSelector = "#password"
)

// LoginAlertSelectors locate messages the login and challenge pages show the
// member, such as a rejected password or the code prompt. First match wins.
var LoginAlertSelectors = []string{
	`div[role="alert"]`,
	"#error-for-password",
	"#error-for-username",
	"div.alert",
	"div.error",
	"span.error",
	".challenge p",
	".checkpoint p",
}
