// Package screenshot defines the core types and interfaces of the capture
// pipeline: tasks, records, typed capture errors, content addressing, and the
// capability interfaces implemented by renderers and sinks.
package screenshot
