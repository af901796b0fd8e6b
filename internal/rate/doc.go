// Package rate implements fixed-window Redis counters for login and renew
// throttling.
//
// Window semantics: INCR, then EXPIRE on the first hit of a window. Keys:
//
//	<prefix>:rl:login:<identifier>   failed logins per identifier
//	<prefix>:rl:loginip:<ip>         failed logins per client IP
//	<prefix>:rl:renew:<subject>      renewals per subject
package rate
