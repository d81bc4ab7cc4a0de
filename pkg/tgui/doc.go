// Package tgui provides small Telegram UI helpers:
//   - inline keyboard builders
//   - HTML escaping for ParseMode="HTML"
//   - callback_data and text length limits
package tgui
