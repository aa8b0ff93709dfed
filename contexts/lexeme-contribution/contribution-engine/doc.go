// Package contributionengine allocates lexeme work items to contributors.
//
// A contributor starts a session for one activity (connect, script or
// hyphenation) in one language and receives a batch of items no other open
// session holds. Items are resolved one by one; add writes to the external
// corpus before the item is completed.
package contributionengine
