package constants

import "strings"

// SourceKind is the reader family a document is dispatched to.
type SourceKind string

const (
	KindText   SourceKind = "TEXT"   // line-oriented dumps
	KindPDF    SourceKind = "PDF"    // paginated
	KindWord   SourceKind = "WORD"   // paragraph-oriented office documents
	KindSlides SourceKind = "SLIDES" // slide decks
	KindHTML   SourceKind = "HTML"
	KindXML    SourceKind = "XML"
	KindCSV    SourceKind = "CSV"
	KindSheet  SourceKind = "SHEET" // spreadsheets
)

// Extensions maps a normalized extension to its source kind. An empty
// extension is treated as text, the way bulk dumps usually arrive.
var Extensions = map[string]SourceKind{
	"":     KindText,
	"txt":  KindText,
	"md":   KindText,
	"yml":  KindText,
	"yaml": KindText,
	"dat":  KindText,
	"log":  KindText,
	"sql":  KindText,
	"pdf":  KindPDF,
	"docx": KindWord,
	"doc":  KindWord,
	"odt":  KindWord,
	"rtf":  KindWord,
	"pptx": KindSlides,
	"ppt":  KindSlides,
	"htm":  KindHTML,
	"html": KindHTML,
	"xml":  KindXML,
	"csv":  KindCSV,
	"xlsx": KindSheet,
	"xls":  KindSheet,
}

// LegacyTargets lists binary office formats and the container format they
// are converted to before reading.
var LegacyTargets = map[string]string{
	"doc": "docx",
	"rtf": "docx",
	"ppt": "pptx",
	"xls": "xlsx",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
