package tgui

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
const MaxCallbackDataLen = 64

// FitsCallbackData reports whether s can be used as callback_data.
func FitsCallbackData(s string) bool {
	return s != "" && len(s) <= MaxCallbackDataLen
}
