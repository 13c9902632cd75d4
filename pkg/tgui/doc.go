// Package tgui provides small Telegram UI helpers:
//   - an HTML message builder that escapes by default
//   - inline keyboard builders
//   - callback data helpers ("ns:action:payload")
package tgui
