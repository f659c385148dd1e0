// Package comparison pairs baseline and comparison captures into verdicts.
//
// An Orchestrator handles one page/device pair: it captures the comparison
// URL (and the baseline URL when none exists or a refresh was requested)
// through the shared capture pool, diffs the two images, classifies the
// result against the site's failing threshold, persists it, and broadcasts
// the site's refreshed page list.
//
// A Batch accepts many jobs at once. It marks every entry loading and
// notifies observers before any capture starts, then hands the jobs to a
// background dispatcher and returns immediately.
package comparison
