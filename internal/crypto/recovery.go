package crypto

import "bytes"

// Pure transform over decrypted bytes
type Recovery struct {
	Name  string
	Apply func(raw []byte) []byte
}

// Applied in order, each to the unmodified input. First valid JSON wins.
var RecoveryChain = []Recovery{
	{Name: "none", Apply: func(raw []byte) []byte { return raw }},
	{Name: "double-comma", Apply: fixDoubleComma},
	{Name: "embedded-nul", Apply: truncateAtNUL},
}

// Some firmware emits `,,"otu_stat"` in miIO.info replies
func fixDoubleComma(raw []byte) (fixed []byte) {
	fixed = bytes.ReplaceAll(raw, []byte(`,,"otu_stat"`), []byte(`,"otu_stat"`))
	return
}

// Some firmware leaves garbage after a NUL inside the payload
func truncateAtNUL(raw []byte) (truncated []byte) {
	idx := bytes.IndexByte(raw, 0)
	if idx <= 0 {
		truncated = raw
		return
	}
	truncated = raw[:idx]
	return
}
