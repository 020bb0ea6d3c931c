package relcache

// TagDeriver turns a Query into its invalidation tag set: one tag per
// distinct entity type the query touches, eager-loaded relations included.
// Tags depend only on entity types, never on clauses or columns, so two
// differently-filtered queries over the same entities share tags and are
// invalidated together.
type TagDeriver struct {
	prefix string
}

func NewTagDeriver(namespace, cachePrefix string) *TagDeriver {
	return &TagDeriver{prefix: joinPrefix(namespace, cachePrefix)}
}

// Tags returns the tag set for q: "<prefix><entity>" for each distinct entity
// type, root type first. Duplicate types collapse to one tag; order carries
// no meaning beyond stable output.
func (d *TagDeriver) Tags(q Query) []string {
	ents := q.EntityTypes()
	tags := make([]string, len(ents))
	for i, e := range ents {
		tags[i] = d.prefix + e
	}
	return tags
}

// EntityTag returns the single tag for one entity type.
func (d *TagDeriver) EntityTag(entity string) string {
	return d.prefix + entity
}
