// Package confirm asks a chat room yes/no questions one job at a time.
//
// # Scheduler
//
// [Scheduler.Tick] runs one poll step against the [Queue]: a processing job older than the staleness
// window is evicted and its timeout message sent, then, if nothing is processing, the earliest queued job
// is promoted and its question sent to its room. The bot drives Tick from the same goroutine that handles
// inbound messages, so ticks never overlap within a process.
//
// # Answers
//
// [Answerer] routes every inbound message to the handler registered for the processing job's type.
// A handler reports whether the job is resolved; resolution is a compare-and-delete on the queue, so an
// answer that lands after the job was evicted changes nothing.
//
// [ConfirmAddToPlaylist] is the handler for [models.JobConfirmAddToPlaylist].
package confirm
