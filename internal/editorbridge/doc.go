// Package editorbridge connects the pipeline to the external flow editor.
//
// The editor talks socket.io. Every command arrives as an event named
// after the command with a JSON object payload, and every command is
// answered with a "result" event:
//
//	-> connect  {"id": "7", "prev": "camera@v2", "target": "invert@v2"}
//	<- result   {"id": "7", "ok": true}
//
// The bridge also pushes "plugins" lists after every successful edit and
// "state" notifications whenever the pipeline starts, pauses or stops.
//
// Command handling lives in Dispatcher, which knows nothing about the
// transport and is what the tests drive.
package editorbridge
