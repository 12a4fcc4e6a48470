package progress

import "io"

// Reader wraps an io.Reader and reports how much has been read every
// interval bytes.
type Reader struct {
	r        io.Reader
	total    int64
	interval int64
	report   func(read, total int64)

	read        int64
	sinceReport int64
}

// NewReader wraps r. total is the expected size, or -1 when unknown. A
// non-positive interval disables periodic reports.
func NewReader(r io.Reader, total, interval int64, report func(read, total int64)) *Reader {
	return &Reader{
		r:        r,
		total:    total,
		interval: interval,
		report:   report,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.sinceReport += int64(n)

		if pr.interval > 0 && pr.sinceReport >= pr.interval {
			pr.report(pr.read, pr.total)
			pr.sinceReport = 0
		}
	}

	return n, err
}

// BytesRead is the number of bytes consumed so far.
func (pr *Reader) BytesRead() int64 {
	return pr.read
}
