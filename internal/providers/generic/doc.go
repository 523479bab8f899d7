// Package generic implements the universal scraper: it fetches a series or
// chapter page, resolves a selector per field through the detector (or an
// operator override) and normalizes what it finds.
package generic
