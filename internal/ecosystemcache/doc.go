// Package ecosystemcache memoizes ecosystem detection per repository and fingerprint,
// and persists the memo as a JSON snapshot on local disk or in an S3-compatible bucket.
package ecosystemcache
