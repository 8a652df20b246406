// Package importer prepares schema and data imports for TuGraph.
//
// The server imports data through two built-in procedures:
//
//	CALL db.importor.schemaImportor('<base64 schema>')
//	CALL db.importor.dataImportor('<base64 desc>','<base64 data>',<continueOnError>,<threads>,'<delimiter>')
//
// This package builds those calls. It validates import configurations,
// decodes escaped delimiters and cuts large files into packages that end on
// record boundaries. Each statement is handed to an [Executor], which the
// tugraph client implements as a leader write with its usual retry.
//
// # Configuration
//
//	{
//	    "files": [
//	        {"path": "person.csv", "format": "CSV", "label": "Person", "header": 1, "columns": ["id", "name"]},
//	        {"path": "knows/", "format": "CSV", "label": "KNOWS", "SRC_ID": "Person", "DST_ID": "Person",
//	         "columns": ["SRC_ID", "DST_ID", "since"]}
//	    ]
//	}
//
// A directory path expands to its regular files. Vertex files are imported
// before edge files.
//
// # Resuming
//
// With a [Checkpointer] and a job id, the number of completed packages is
// saved after each package. A later run with the same job id skips what was
// already sent. [NATSCheckpointer] keeps checkpoints in a JetStream KV bucket
// so a job can resume on another host.
package importer
