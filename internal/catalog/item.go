package catalog

// Item is one unit of generation work parsed from a catalog document.
//
// Items are constructed once by the parser and never mutated afterwards. ID is
// the checkpoint key and the artifact filename stem; Section and Category are
// reporting labels only and never influence processing order.
type Item struct {
	ID       string
	Name     string
	Prompt   string
	Meta     map[string]string
	Section  string
	Category string
}

// MetaValue returns the trimmed metadata value for key, or "" when absent.
func (i Item) MetaValue(key string) string {
	if i.Meta == nil {
		return ""
	}
	return i.Meta[key]
}
