package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageTypeValid(t *testing.T) {
	for _, mt := range []MessageType{
		MessageTypeText, MessageTypeImage, MessageTypeFile,
		MessageTypeProposal, MessageTypeCampaignCard, MessageTypeProfileCard,
	} {
		assert.True(t, mt.Valid(), "%s", mt)
	}
	assert.False(t, MessageType("video").Valid())
	assert.False(t, MessageType("").Valid())
}

func TestMessageTypeForUpload(t *testing.T) {
	assert.Equal(t, MessageTypeImage, MessageTypeForUpload("image"))
	assert.Equal(t, MessageTypeFile, MessageTypeForUpload("file"))
	assert.Equal(t, MessageTypeFile, MessageTypeForUpload(""))
	assert.Equal(t, MessageTypeFile, MessageTypeForUpload("pdf"))
}

func TestNormalizeContent(t *testing.T) {
	assert.Equal(t, "hello", NormalizeContent("  hello \n"))
	assert.Equal(t, "", NormalizeContent("   \t\n"))
	assert.Equal(t, "a b", NormalizeContent("a b"))
}
