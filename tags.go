package flac

import (
	"github.com/litesound/flac/meta"
)

// TagSeparator joins the values of a tag which occurs more than once.
const TagSeparator = "; "

// A TagSet maps from tag name to value. The values of a name which occurs more
// than once are joined with TagSeparator in stream order.
type TagSet map[string]string

// ReadTags returns the Vorbis comment tags of the FLAC file at path. A file
// without comment block yields an empty TagSet. The bodies of all other
// metadata blocks are skipped unverified.
func ReadTags(path string) (TagSet, error) {
	const op = "ReadTags"
	if err := checkFLACFile(op, path); err != nil {
		return nil, err
	}
	f, err := openFile(op, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stream, err := parse(f, isVorbisComment)
	if err != nil {
		return nil, &Error{Op: op, Path: path, Kind: ErrFormat, Err: err}
	}
	return NewTagSet(stream.Blocks), nil
}

func isVorbisComment(typ meta.Type) bool {
	return typ == meta.TypeVorbisComment
}

// NewTagSet flattens the tags of every VorbisComment block of blocks. Names are
// case-preserving.
func NewTagSet(blocks []*meta.Block) TagSet {
	tags := make(TagSet)
	for _, block := range blocks {
		comment, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}
		for _, tag := range comment.Tags {
			name, value := tag[0], tag[1]
			if prev, ok := tags[name]; ok {
				value = prev + TagSeparator + value
			}
			tags[name] = value
		}
	}
	return tags
}
