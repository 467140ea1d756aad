package feed

// DelayForTest exposes the backoff schedule to the package tests.
var DelayForTest = Backoff.delay
