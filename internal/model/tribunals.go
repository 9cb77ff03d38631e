package model

// ScopeNational is the jurisdiction scope shared by every tribunal.
const ScopeNational = "NACIONAL"

// tribunals lists every court whose publication feed can be queried:
// superior courts, federal and labour regional courts, state courts and
// electoral courts.
var tribunals = []string{
	"STF", "STJ", "TST", "TSE", "STM",

	"TRF1", "TRF2", "TRF3", "TRF4", "TRF5", "TRF6",

	"TJAC", "TJAL", "TJAP", "TJAM", "TJBA", "TJCE", "TJDF", "TJES",
	"TJGO", "TJMA", "TJMT", "TJMS", "TJMG", "TJPA", "TJPB", "TJPR",
	"TJPE", "TJPI", "TJRJ", "TJRN", "TJRS", "TJRO", "TJRR", "TJSC",
	"TJSP", "TJSE", "TJTO",

	"TRT1", "TRT2", "TRT3", "TRT4", "TRT5", "TRT6", "TRT7", "TRT8",
	"TRT9", "TRT10", "TRT11", "TRT12", "TRT13", "TRT14", "TRT15",
	"TRT16", "TRT17", "TRT18", "TRT19", "TRT20", "TRT21", "TRT22",
	"TRT23", "TRT24",

	"TREAC", "TREAL", "TREAP", "TREAM", "TREBA", "TRECE", "TREDF",
	"TREES", "TREGO", "TREMA", "TREMT", "TREMS", "TREMG", "TREPA",
	"TREPB", "TREPR", "TREPE", "TREPI", "TRERJ", "TRERN", "TRERS",
	"TRERO", "TRERR", "TRESC", "TRESP", "TRESE", "TRETO",
}

var tribunalSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(tribunals))
	for _, t := range tribunals {
		m[t] = struct{}{}
	}
	return m
}()

// KnownTribunal reports whether sigla names a known court.
func KnownTribunal(sigla string) bool {
	_, ok := tribunalSet[sigla]
	return ok
}

// Tribunals returns a copy of the full tribunal list.
func Tribunals() []string {
	out := make([]string, len(tribunals))
	copy(out, tribunals)
	return out
}
