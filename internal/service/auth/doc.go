// Package auth captures browser cookies for sources that require signing in.
//
// A visible browser is opened through go-rod with stealth evasions, the user
// signs in by hand, and once a session cookie appears every cookie of the
// browser is written to a Netscape cookies file that yt-dlp understands.
package auth
