package model

import "fmt"

type ClassificationKind int

const (
	// the model answered with one of the labels
	ClassificationRecognized ClassificationKind = iota
	// the model answered, but not with a usable label
	ClassificationUnrecognized
	// transport error, non-2xx status or an unparsable body
	ClassificationFailed
)

func (k ClassificationKind) String() string {
	switch k {
	case ClassificationRecognized:
		return "recognized"
	case ClassificationUnrecognized:
		return "unrecognized"
	case ClassificationFailed:
		return "failed"
	}
	return fmt.Sprintf("ClassificationKind(%d)", int(k))
}

// Classification is the outcome of asking a classifier for a topic.
type Classification struct {
	Kind  ClassificationKind
	Label Topic
	Raw   string
	Err   error
}

func Recognized(label Topic, raw string) Classification {
	return Classification{Kind: ClassificationRecognized, Label: label, Raw: raw}
}

func Unrecognized(raw string) Classification {
	return Classification{Kind: ClassificationUnrecognized, Raw: raw}
}

func Failed(err error, raw string) Classification {
	return Classification{Kind: ClassificationFailed, Err: err, Raw: raw}
}

// Topic returns the label to store. Every arm except a recognized label resolves to TopicOther.
func (c Classification) Topic() Topic {
	if c.Kind == ClassificationRecognized && c.Label != "" {
		return c.Label
	}
	return TopicOther
}
