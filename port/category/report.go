package category

import (
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Row is one line of a category report.
type Row struct {
	Code          Code   `json:"code"`
	Name          string `json:"name"`
	Depth         int    `json:"depth"`
	Bytes         int64  `json:"bytes"`
	Allocs        int64  `json:"allocs"`
	SubtreeBytes  int64  `json:"subtree_bytes"`
	SubtreeAllocs int64  `json:"subtree_allocs"`
}

// Rows flattens the tree into report rows, depth first.
func (r *Registry) Rows() []Row {
	var rows []Row
	r.Walk(func(c *Category, depth int) {
		sub := r.SubtreeTotals(c.Code)
		rows = append(rows, Row{
			Code:          c.Code,
			Name:          c.Name,
			Depth:         depth,
			Bytes:         c.liveBytes.Load(),
			Allocs:        c.liveAllocs.Load(),
			SubtreeBytes:  sub.Bytes,
			SubtreeAllocs: sub.Allocs,
		})
	})
	return rows
}

// WriteReport renders the tree with subtree totals, one category per line:
//
//	Port Library                      0x80000001  1,048,576 bytes  (1.0 MiB)       3 allocs
//	  Unused <32bit region memory     0x80000002  1,048,000 bytes  (1023 KiB)      0 allocs
func (r *Registry) WriteReport(w io.Writer, tag language.Tag) error {
	p := message.NewPrinter(tag)
	for _, row := range r.Rows() {
		name := strings.Repeat("  ", row.Depth) + row.Name
		size := humanize.IBytes(uint64(max(row.SubtreeBytes, 0)))
		if _, err := p.Fprintf(w, "%-34s 0x%08x %14d bytes  (%-9s) %8d allocs\n",
			name, uint32(row.Code), row.SubtreeBytes, size, row.SubtreeAllocs); err != nil {
			return err
		}
	}
	return nil
}
