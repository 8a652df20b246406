// Package classify decides whether a statement may be served by a follower.
//
// Classification combines a static keyword scan with procedure metadata
// fetched from the server. It is a pure function of the statement and the
// current [Catalog], so classifying the same statement twice without an
// intervening catalog update always yields the same answer.
//
// # Rules
//
//  1. A statement that CALLs procedures is read-only only if every invoked
//     procedure is known read-only. A user-defined procedure of the target
//     graph takes precedence over a built-in of the same name; unknown
//     procedures are treated as writes.
//  2. Any other statement is a write if it contains a mutating keyword as a
//     whole word, case-insensitively. Cypher: CREATE, SET, DELETE, REMOVE,
//     MERGE. GQL: CREATE, INSERT, DROP, SET, REMOVE, DELETE.
//
// Callers that must read their own writes should bypass classification and
// target the leader explicitly.
package classify
