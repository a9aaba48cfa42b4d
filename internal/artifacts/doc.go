// Package artifacts persists downloaded generation results under
// deterministic, collision-avoiding paths.
//
// Filenames are `{id}_{sanitized(name)}.{ext}`; the sanitizer folds accented
// characters to their base letters and strips everything outside a
// conservative portable set. An already-existing destination is never
// overwritten: the checkpoint decides what gets processed, the filesystem
// check only avoids redundant writes.
package artifacts
