// Package watch decides when a repository has a commit worth reviewing.
package watch

// Detector remembers the last HEAD hash that was seen. It is not safe for
// concurrent use; the window only touches it from its update loop.
type Detector struct {
	last string
}

// NewDetector creates a Detector with no recorded hash, so the first
// observation counts as new.
func NewDetector() *Detector {
	return &Detector{}
}

// Observe records hash and reports whether it differs from the previously
// recorded one. An empty hash is never new and leaves the marker untouched.
func (d *Detector) Observe(hash string) bool {
	if hash == "" || hash == d.last {
		return false
	}
	d.last = hash
	return true
}

// Seed records hash without reporting it, for starting quietly on the
// current HEAD.
func (d *Detector) Seed(hash string) {
	d.last = hash
}

// Last returns the recorded hash.
func (d *Detector) Last() string {
	return d.last
}

// Reset forgets the recorded hash, e.g. after switching repositories.
func (d *Detector) Reset() {
	d.last = ""
}
