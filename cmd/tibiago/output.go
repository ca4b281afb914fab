package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/udisondev/tibiago/internal/tibia"
)

// printer writes results either as a field listing per message or, in
// summary mode, as one table rendered at the end.
type printer struct {
	out     io.Writer
	table   *tablewriter.Table
	rows    int
	skipped int
}

func newPrinter(out io.Writer, summary bool) *printer {
	p := &printer{out: out}
	if summary {
		p.table = tablewriter.NewWriter(out)
		p.table.SetHeader([]string{"Frame", "Source", "Destination", "Phase", "Info", "Notes"})
		p.table.SetBorder(true)
		p.table.SetAutoWrapText(false)
	}
	return p
}

func (p *printer) add(res *tibia.Result) error {
	if p.table != nil {
		p.table.Append([]string{
			strconv.FormatUint(uint64(res.Frame), 10),
			res.Src.String(),
			res.Dst.String(),
			res.Phase.String(),
			res.Info,
			notes(res),
		})
		p.rows++
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Frame %d  %s -> %s  %s\n", res.Frame, res.Src, res.Dst, res.Info)
	for _, f := range res.Fields {
		fmt.Fprintf(&sb, "    %s\n", f)
	}
	for _, a := range res.Annotations {
		fmt.Fprintf(&sb, "    [!] %s\n", a)
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(p.out, sb.String())
	return err
}

func (p *printer) flush() error {
	if p.table != nil && p.rows > 0 {
		p.table.Render()
	}
	return nil
}

func notes(res *tibia.Result) string {
	switch len(res.Annotations) {
	case 0:
		return ""
	case 1:
		return res.Annotations[0].Reason
	default:
		return fmt.Sprintf("%s (+%d)", res.Annotations[0].Reason, len(res.Annotations)-1)
	}
}
