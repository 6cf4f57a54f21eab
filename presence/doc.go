// Package presence tracks live connections and player online status
// for this server instance.
package presence
