package card

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/bbngrid/internal/grid"
)

// cardLines is the simulator input grammar. Column alignment is fixed and
// the card carries no trailing newline.
var cardLines = []string{
	"*LINES STARTING WITH AN ASTERISK ARE COMMENTED",
	"TAU       %.7f                      experimental value of neutron lifetime",
	"DNNU      %.7f                  number of extra neutrinos",
	"XIE       %.7f                    nu_e chemical potential",
	"XIX       %.7f                    nu_x chemical potential",
	"RHOLMBD   %.7f                 value of cosmological constant at the BBN epoch",
	"OVERWRITE %s                 option for overwriting the output files",
	"FOLLOW    %s                  option for following the evolution on the screen",
	"ETA10     %.7f                     value of eta10",
	"OUTPUT    %s %s %s     options for customizing the output",
	"NETWORK   %s         number of nuclides in the network",
	"FILES     %s %s %s          names of the three output files",
	"RATES     %s %s",
	"EXIT                                          terminates input",
}

var cardFormat = strings.Join(cardLines, "\n")

func flag(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

// formatFactor prints a correction factor the way the simulator expects
// plain decimals, always with a fractional part.
func formatFactor(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Render writes the input card for one job.
func Render(w io.Writer, p grid.Point, c *Common, d Descriptor) error {
	if len(p) != grid.NumParams {
		return fmt.Errorf("%w: point has %d values", ErrBadPoint, len(p))
	}

	indices := make([]string, 0, len(c.StoredNuclides))
	for _, n := range c.StoredNuclides {
		indices = append(indices, strconv.Itoa(NuclideIndex[n]))
	}

	rates := c.ActiveRates()
	changed := make([]string, 0, len(rates))
	for _, r := range rates {
		changed = append(changed, fmt.Sprintf("(%d %d %s)", r.Reaction, r.Correction, formatFactor(r.Factor)))
	}

	_, err := fmt.Fprintf(w, cardFormat,
		p.Get("taun"),
		p.Get("DeltaNnu"),
		p.Get("csinue"),
		p.Get("csinux"),
		p.Get("rhoLambda"),
		flag(c.Overwrite),
		flag(c.OnScreen),
		p.Get("eta10"),
		flag(c.SaveNuclides), strconv.Itoa(len(c.StoredNuclides)), strings.Join(indices, " "),
		strconv.Itoa(c.Network.Nuclides()),
		d.Summary, d.Series, d.Info,
		strconv.Itoa(len(rates)), strings.Join(changed, " "),
	)
	return err
}

// RenderDriver writes the stdin script that points the simulator at a card.
func RenderDriver(w io.Writer, d Descriptor) error {
	_, err := fmt.Fprintf(w, "c\n%s\n", d.Card)
	return err
}
