package seed

// File is the seed document: a list of catalog media to import at startup.
type File struct {
	Items []Entry `yaml:"items"`
}

// Entry names one catalog media id. Note is free text for humans editing the
// file and is ignored on import.
type Entry struct {
	ID   int64  `yaml:"id"`
	Note string `yaml:"note"`
}
