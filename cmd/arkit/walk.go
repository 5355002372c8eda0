package main

import (
	"path"

	"github.com/meigma/archive"
)

// walk visits every entry below d in name order, depth first.
func walk(d *archive.Directory, prefix string, fn func(p string, e archive.Entry)) {
	for _, name := range d.Entries() {
		e, _ := d.Entry(name)
		p := path.Join(prefix, name)
		fn(p, e)
		if sub, ok := e.(*archive.Directory); ok {
			walk(sub, p, fn)
		}
	}
}
