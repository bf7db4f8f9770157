package scope

// DefaultTransferLimit is the largest number of byte samples a scope will
// return from one ":WAV:DATA?" request in RAW mode.
const DefaultTransferLimit = 250000

// Window is a 1-based, inclusive range of scope memory fetched by one
// binary query.
type Window struct {
	Start int
	Stop  int
}

// Len returns the number of samples the window covers.
func (w Window) Len() int { return w.Stop - w.Start + 1 }

// Windows splits depth samples into consecutive windows of at most limit
// samples. A non-positive depth yields no windows; a non-positive limit
// falls back to DefaultTransferLimit.
func Windows(depth, limit int) []Window {
	if depth <= 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultTransferLimit
	}
	pages := (depth + limit - 1) / limit
	out := make([]Window, 0, pages)
	for p := 0; p < pages; p++ {
		out = append(out, Window{
			Start: p*limit + 1,
			Stop:  min((p+1)*limit, depth),
		})
	}
	return out
}
