// Package ads holds the targeted advertisement domain model shared by the
// statement matrix, the targeting service and the HTTP layer.
//
// An Advertisement carries its targeting predicate: an inclusive age range,
// optional country, platform and gender, and an exclusive expiry. A Condition
// is the read side of the same predicate where every attribute may be absent.
// Absent attributes on either side never constrain the match.
package ads
