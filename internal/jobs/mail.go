package jobs

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templates embed.FS

// Templates holds the mail templates the jobs send, with layouts under
// "layouts/".
func Templates() fs.FS {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
