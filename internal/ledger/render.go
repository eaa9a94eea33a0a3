package ledger

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

const emptyBlockMessage = "No transactions in this block."

// Render writes rows as text, one section per block.
func Render(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "The ledger is empty.")
		return err
	}

	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(w)
		}
		b := row.Block
		fmt.Fprintf(w, "Block #%d  %s\n", b.Index, b.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  hash:      %s\n", b.Hash)
		fmt.Fprintf(w, "  prev_hash: %s\n", orDash(b.PrevHash))
		fmt.Fprintf(w, "  proof:     %s\n", b.Proof)

		if row.Empty() {
			fmt.Fprintf(w, "  %s\n", emptyBlockMessage)
			continue
		}

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tSENDER\tRECEIVER\tAMOUNT\tIMAGE HASH")
		for j, tx := range row.Shown {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n",
				j+1,
				tx.Sender,
				tx.Receiver,
				strconv.FormatFloat(tx.Amount, 'f', -1, 64),
				tx.ImageHash,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if row.Hidden > 0 {
			fmt.Fprintf(w, "  ... %d more (show with --expand %d)\n", row.Hidden, b.Index)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
