package usecases

// Intent is a coarse category of user request.
type Intent string

const (
	IntentGreeting     Intent = "greeting"
	IntentMalfunction  Intent = "malfunction"
	IntentStore        Intent = "store"
	IntentPrice        Intent = "price"
	IntentSupportGroup Intent = "support_group"
	IntentAddress      Intent = "address"
	IntentDepartment   Intent = "department"
	IntentManual       Intent = "manual"
	IntentWiring       Intent = "wiring"
	IntentDoorTopic    Intent = "door_topic"
)

// KeywordRule matches when the normalized message contains any keyword, or
// has any of Words as a whole token. Words exist for short tokens that occur
// inside unrelated words.
type KeywordRule struct {
	Intent   Intent
	Keywords []string
	Words    []string
}

func (r KeywordRule) Matches(m string) bool {
	if containsAny(m, r.Keywords...) {
		return true
	}
	for _, w := range r.Words {
		if containsWord(m, w) {
			return true
		}
	}
	return false
}

func normalizedRule(r KeywordRule) KeywordRule {
	out := KeywordRule{Intent: r.Intent}
	for _, k := range r.Keywords {
		out.Keywords = append(out.Keywords, Normalize(k))
	}
	for _, w := range r.Words {
		out.Words = append(out.Words, Normalize(w))
	}
	return out
}

var keywordRules = map[Intent]KeywordRule{}

func init() {
	for _, r := range []KeywordRule{
		{Intent: IntentAddress, Keywords: []string{"عنوان", "لوكيشن", "مكان", "فروع", "فرع", "فين", "location"}},
		{Intent: IntentDepartment, Keywords: []string{"دعم", "الدعم الفني", "خدمه العملاء", "مبيعات", "تسويق", "مشتريات", "ارقام", "رقم"}},
		{Intent: IntentManual, Keywords: []string{"دليل", "كتالوج", "datasheet", "data sheet", "manual", "user guide"}},
		{Intent: IntentWiring, Keywords: []string{"مخطط", "توصيل", "wiring", "diagram", "schematic"}},
		{Intent: IntentMalfunction, Keywords: []string{"اعطال", "عطل", "رموز", "alerts", "alarms", "error code"}},
		{Intent: IntentPrice, Keywords: []string{"سعر", "اسعار", "تكلفه", "price", "cost"}, Words: []string{"كام", "بكام"}},
		{Intent: IntentStore, Keywords: []string{"متجر", "store", "shop", "شراء", "اشتري", "اطلب اونلاين"}},
		{Intent: IntentSupportGroup, Keywords: []string{"جروب", "group", "مجموعه"}},
		{Intent: IntentDoorTopic, Keywords: []string{"باب", "ابواب", "فولدينج", "اوتوماتيك"}},
	} {
		keywordRules[r.Intent] = normalizedRule(r)
	}
}

// Is reports whether the normalized message m carries the keyword intent.
func Is(intent Intent, m string) bool {
	r, ok := keywordRules[intent]
	return ok && r.Matches(m)
}

func IsAddressIntent(m string) bool      { return Is(IntentAddress, m) }
func IsDepartmentIntent(m string) bool   { return Is(IntentDepartment, m) }
func IsManualIntent(m string) bool       { return Is(IntentManual, m) }
func IsWiringIntent(m string) bool       { return Is(IntentWiring, m) }
func IsMalfunctionIntent(m string) bool  { return Is(IntentMalfunction, m) }
func IsPriceIntent(m string) bool        { return Is(IntentPrice, m) }
func IsStoreIntent(m string) bool        { return Is(IntentStore, m) }
func IsSupportGroupIntent(m string) bool { return Is(IntentSupportGroup, m) }
func IsDoorTopic(m string) bool          { return Is(IntentDoorTopic, m) }
