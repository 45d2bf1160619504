package dispatch

import "campaigner/internal/campaign"

// BatchCount returns ceil(n/size).
func BatchCount(n, size int) int {
	if n <= 0 || size < 1 {
		return 0
	}
	return (n + size - 1) / size
}

// Batches slices recipients into consecutive windows of size; the last window
// may be shorter. The windows share the caller's backing array.
func Batches(recipients []campaign.Recipient, size int) [][]campaign.Recipient {
	if size < 1 {
		size = 1
	}
	out := make([][]campaign.Recipient, 0, BatchCount(len(recipients), size))
	for i := 0; i < len(recipients); i += size {
		end := i + size
		if end > len(recipients) {
			end = len(recipients)
		}
		out = append(out, recipients[i:end:end])
	}
	return out
}
