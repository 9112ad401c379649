// Noteserver serves plain-text notes over HTTP. Each note is a file named
// after the note, with a .txt suffix, in the directory given with -c/--cache.
//
//	noteserver -h localhost -p 3000 -c /var/lib/notes
//
// GET, PUT and DELETE on /notes/{name} read, overwrite and remove a note. PUT
// and DELETE require the note to exist, otherwise they return 404. GET /notes
// returns all notes as a JSON array of objects with name and text fields.
// POST /write with the form fields note_name and note creates a note, or
// returns 400 if one with that name exists. GET /UploadForm.html serves a form
// that posts to /write.
//
// The host, port and directory are required, either as flags or in the file
// given with --config, which is also where the optional mirror is set up:
//
//	{
//		host: "localhost"
//		port: 3000
//		cache: "/var/lib/notes"
//		metrics: true
//		mirror: {
//			kind: "s3"
//			profile: "notes"
//			region: "eu-west-2"
//			bucket: "notes-backup"
//			rate: 5
//		}
//	}
//
// Flags take precedence over the file.
package main // import "github.com/nicolagi/notestore/cmd/noteserver"
