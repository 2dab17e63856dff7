package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordIntents(t *testing.T) {
	tests := []struct {
		intent Intent
		msg    string
		want   bool
	}{
		{IntentAddress, "عنوان فرع فيصل", true},
		{IntentAddress, "الفروع فين", true},
		{IntentAddress, "location please", true},
		{IntentAddress, "سلام", false},
		{IntentDepartment, "رقم المبيعات", true},
		{IntentDepartment, "ارقام", true},
		{IntentDepartment, "خدمة العملاء", true},
		{IntentManual, "عايز الكتالوج", true},
		{IntentManual, "Data Sheet", true},
		{IntentWiring, "مخطط التوصيل", true},
		{IntentWiring, "wiring diagram", true},
		{IntentMalfunction, "رموز الأعطال", true},
		{IntentMalfunction, "Error Code E12", true},
		{IntentPrice, "سعر الكارت", true},
		{IntentPrice, "الكارت بكام؟", true},
		{IntentPrice, "كام سعره", true},
		{IntentPrice, "عندكم كاميرات", false},
		{IntentStore, "رابط المتجر", true},
		{IntentStore, "عايز اشتري", true},
		{IntentSupportGroup, "جروب الواتساب", true},
		{IntentDoorTopic, "الأبواب الأوتوماتيك", true},
		{IntentDoorTopic, "كارت 2025", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.intent)+"/"+tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(tt.intent, Normalize(tt.msg)))
		})
	}
}

func TestDetectors_IsGreeting(t *testing.T) {
	k := testKnowledge()
	k.Greetings.Triggers = append(k.Greetings.Triggers, "  ", "صباح الخير")
	d := NewDetectors(k)

	assert.True(t, d.IsGreeting(Normalize("ازيك")))
	assert.True(t, d.IsGreeting(Normalize("السلام عليكم ورحمة الله")))
	assert.True(t, d.IsGreeting(Normalize("Hello there")))
	assert.True(t, d.IsGreeting(Normalize("صباح  الخير")))
	assert.False(t, d.IsGreeting(Normalize("عنوان فرع فيصل")))
	assert.False(t, d.IsGreeting(""))
	assert.Equal(t, []string{"السلام عليكم", "ازيك", "hello", "صباح الخير"}, d.greetings, "triggers are normalized once")
}

func TestDetectors_IsGreetingNoTriggers(t *testing.T) {
	k := testKnowledge()
	k.Greetings.Triggers = nil
	assert.False(t, NewDetectors(k).IsGreeting(Normalize("ازيك")))
}
