package pipeline

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/copro-tools/coproledger/pkg/models/domain"
)

// renderOwners prints the consolidated owner set as a plain text table.
func renderOwners(out io.Writer, owners []domain.Owner, referenceDate string) {
	fmt.Fprintf(out, "Owner situation as of %s\n\n", referenceDate)

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tOWNER\tTYPE\tLOT\tDEBIT\tCREDIT")
	for _, o := range owners {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.OwnerCode, o.OwnerName, o.ApartmentType, o.LotNumber,
			o.Debit.StringFixed(2), o.Credit.StringFixed(2))
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d owners\n", len(owners))
}
