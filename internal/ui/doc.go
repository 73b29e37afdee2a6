// Package ui implements a terminal chat console using bubbletea's Elm architecture.
//
// [Console] is a chat transport: each line typed into the input becomes a message in the [Room] room,
// and everything the bot sends is appended to a scrolling transcript. The bot talks to the console
// through the same interface as any other transport, so a console session exercises the real
// watcher, queue and scheduler.
//
// The (view) [Model] follows the standard Init/Update/View pattern and receives messages through the Msg
// union type. Replies reach the model through a channel that a pending command waits on, one reply per
// command, so the UI never blocks on the bot.
//
// Keys: enter sends, pgup/pgdown scroll the transcript, esc or ctrl+c quits.
package ui
