// Package align pairs detected slide intervals with the transcript spans
// spoken while each slide was on screen.
//
// Every interval is widened by a symmetric padding (clamped at zero) to absorb
// the lag between a slide change and the speaker catching up. A span belongs
// to an interval when it strictly overlaps the padded window, so a span that
// merely touches a boundary is never attributed to two neighbouring slides.
// Caller supplied help timestamps mark the slides that need a deeper
// explanation during synthesis.
package align
