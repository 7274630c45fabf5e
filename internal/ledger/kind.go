package ledger

import "strings"

// Kind is the evidence-kind enum as encoded on chain. The numeric mapping
// is part of the wire contract with the deployed registry and must match
// it exactly.
type Kind uint8

const (
	KindImage    Kind = 0
	KindVideo    Kind = 1
	KindDocument Kind = 2
	KindAudio    Kind = 3
	KindOther    Kind = 4
)

// KindFromString maps a stored evidence kind to its wire value. Unknown
// kinds map to KindOther.
func KindFromString(s string) Kind {
	switch strings.ToLower(s) {
	case "image":
		return KindImage
	case "video":
		return KindVideo
	case "document":
		return KindDocument
	case "audio":
		return KindAudio
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindDocument:
		return "document"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}
