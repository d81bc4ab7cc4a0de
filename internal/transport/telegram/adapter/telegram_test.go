package adapter

import (
	"slices"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestMessageEventsCoverNonTextKinds(t *testing.T) {
	for _, ev := range []string{tele.OnText, tele.OnPhoto, tele.OnSticker, tele.OnVideoNote, tele.OnLocation} {
		if !slices.Contains(messageEvents, ev) {
			t.Errorf("%s is not relayed", ev)
		}
	}
}

func TestConvertMessageSticker(t *testing.T) {
	m := &tele.Message{
		ID:      5,
		Chat:    &tele.Chat{ID: 42, Type: tele.ChatPrivate},
		Sender:  &tele.User{ID: 42, Username: "ann"},
		Sticker: &tele.Sticker{},
		Origin:  &tele.MessageOrigin{Chat: &tele.Chat{ID: -100}},
	}
	got := convertMessage(m)
	if !got.HasMedia || !got.IsPrivate {
		t.Fatalf("got %+v", got)
	}
	if !got.Forwarded || got.ForwardChatID != -100 {
		t.Fatalf("forward origin = %v/%d", got.Forwarded, got.ForwardChatID)
	}

	m.Sticker = nil
	m.Location = &tele.Location{Lat: 1, Lng: 2}
	if convertMessage(m).HasMedia {
		t.Fatal("a location carries no media")
	}
}
