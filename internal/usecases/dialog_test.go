package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasbot/internal/entities"
)

func newTestDialog(t *testing.T) *DialogService {
	t.Helper()
	return NewDialogService(providerFor(testKnowledge()), ReplyFormatter{}, nil)
}

func ask(t *testing.T, s *DialogService, text string, c entities.ConversationContext) entities.Reply {
	t.Helper()
	reply, err := s.Respond(context.Background(), entities.Message{Content: text, Platform: "web"}, c)
	require.NoError(t, err)
	return reply
}

func TestRuleOrder(t *testing.T) {
	s := newTestDialog(t)
	assert.Equal(t, []string{
		"greeting", "malfunction", "store", "price", "support_group",
		"address", "department", "manual", "product", "fallback",
	}, s.RuleNames())
}

func TestRespond_AddressWithBranch(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "عنوان فرع الحلمية", entities.ConversationContext{})

	assert.Equal(t, "address", reply.Rule)
	assert.Contains(t, reply.Text, "12 شارع طومان باي")
	assert.Contains(t, reply.Text, "0101")
	assert.Equal(t, entities.AwaitingNone, reply.Context.Awaiting)
	assert.Equal(t, "حلمية الزيتون", reply.Context.LastBranch)
}

func TestRespond_AddressWithoutBranchThenFollowUp(t *testing.T) {
	s := newTestDialog(t)

	first := ask(t, s, "عنوان", entities.ConversationContext{})
	for _, name := range []string{"فيصل", "حلمية الزيتون", "الإسكندرية", "المنصورة"} {
		assert.Contains(t, first.Text, name)
	}
	assert.Equal(t, entities.AwaitingBranchAddress, first.Context.Awaiting)
	assert.Equal(t, "عنوان", first.Context.LastUserMessage)
	assert.Len(t, first.Suggestions, 4)

	second := ask(t, s, "الاسكندرية", first.Context)
	assert.Equal(t, "continue_branch_address", second.Rule)
	assert.Contains(t, second.Text, "5 شارع سموحة")
	assert.Contains(t, second.Text, "0102")
	assert.Equal(t, entities.AwaitingNone, second.Context.Awaiting)
	assert.Empty(t, second.Context.LastUserMessage)
	assert.Equal(t, "الإسكندرية", second.Context.LastBranch)
	assert.NotContains(t, second.Context.Map(), "awaiting")
}

func TestRespond_BranchContinuationMissReprompts(t *testing.T) {
	s := newTestDialog(t)
	c := entities.ConversationContext{Awaiting: entities.AwaitingBranchAddress, LastUserMessage: "عنوان"}

	reply := ask(t, s, "مش عارف", c)

	assert.Equal(t, entities.AwaitingBranchAddress, reply.Context.Awaiting)
	assert.Equal(t, "عنوان", reply.Context.LastUserMessage)
	assert.Contains(t, reply.Text, "فيصل")
	assert.NotEmpty(t, reply.Suggestions)
}

func TestRespond_BranchWithoutAddress(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "عنوان فرع المنصورة", entities.ConversationContext{})

	assert.Equal(t, AddressMissingReply("المنصورة"), reply.Text)
	assert.Equal(t, entities.AwaitingNone, reply.Context.Awaiting)
	assert.Equal(t, "المنصورة", reply.Context.LastBranch)
}

func TestRespond_Greeting(t *testing.T) {
	s := newTestDialog(t)
	in := entities.ConversationContext{
		LastBranch: "فيصل",
		Extra:      map[string]any{"sessionId": "abc", "visits": float64(3)},
	}

	reply := ask(t, s, "ازيك", in)

	assert.Equal(t, "أهلاً بيك في KAS\n\n☎️ الخط الساخن: 19460", reply.Text)
	assert.Equal(t, in.Map(), reply.Context.Map())
}

func TestRespond_GreetingBeatsAddress(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "السلام عليكم عنوان فرع فيصل", entities.ConversationContext{})

	assert.Equal(t, "greeting", reply.Rule)
	assert.Empty(t, reply.Context.LastBranch)
}

func TestRespond_ProductWithSpecs(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "كارت KAS 2025", entities.ConversationContext{})

	assert.Equal(t, "product", reply.Rule)
	assert.Contains(t, reply.Text, "كارت KAS 2025")
	assert.Contains(t, reply.Text, "- 16 وقفة")
	assert.Contains(t, reply.Text, "https://egy-tronix.com/p/kas-2025")
	assert.Equal(t, "kas_2025", reply.Context.LastProductID)
}

func TestRespond_ProductTieBreakByCatalogOrder(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "2021 ولا 2025", entities.ConversationContext{})

	assert.Equal(t, "kas_2025", reply.Context.LastProductID)
}

func TestRespond_DoorProductAddsGroupHint(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "باب فولدينج", entities.ConversationContext{})

	assert.Contains(t, reply.Text, "موتور هادئ")
	assert.Contains(t, reply.Text, "https://chat.example.com/doors")
}

func TestRespond_ProductWithoutSpecs(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "باب اوتوماتيك", entities.ConversationContext{})

	assert.Contains(t, reply.Text, "رابط صفحة المنتج:\nhttps://egy-tronix.com/p/automatic-door")
	assert.Contains(t, reply.Text, "https://chat.example.com/doors")
}

func TestRespond_Department(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "رقم الدعم الفني", entities.ConversationContext{})
	assert.Equal(t, "department", reply.Rule)
	assert.Contains(t, reply.Text, "0110")
	assert.Contains(t, reply.Text, "0111")
	assert.NotContains(t, reply.Text, "https://chat.example.com/doors")
	assert.Equal(t, "الدعم الفني", reply.Context.LastDept)

	doors := ask(t, s, "رقم الدعم الفني للباب", entities.ConversationContext{})
	assert.Contains(t, doors.Text, "https://chat.example.com/doors")
}

func TestRespond_DepartmentKeywordNotInCatalog(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "رقم التسويق", entities.ConversationContext{})

	assert.Equal(t, DepartmentMissingReply("التسويق"), reply.Text)
	assert.Equal(t, entities.AwaitingNone, reply.Context.Awaiting)
}

func TestRespond_DepartmentContinuationKeepsDoorTopic(t *testing.T) {
	s := newTestDialog(t)

	first := ask(t, s, "ارقام الباب", entities.ConversationContext{})
	require.Equal(t, entities.AwaitingDeptContact, first.Context.Awaiting)
	assert.Equal(t, "ارقام الباب", first.Context.LastUserMessage)
	assert.Len(t, first.Suggestions, 3)

	second := ask(t, s, "الدعم الفني", first.Context)
	assert.Contains(t, second.Text, "0110")
	assert.Contains(t, second.Text, "https://chat.example.com/doors")
	assert.Equal(t, entities.AwaitingNone, second.Context.Awaiting)
	assert.Empty(t, second.Context.LastUserMessage)
}

func TestRespond_DepartmentContinuationUnknownDeptReprompts(t *testing.T) {
	s := newTestDialog(t)
	c := entities.ConversationContext{Awaiting: entities.AwaitingDeptContact}

	reply := ask(t, s, "التسويق", c)

	assert.Equal(t, entities.AwaitingDeptContact, reply.Context.Awaiting)
	assert.Contains(t, reply.Text, "خدمة العملاء")
}

func TestRespond_ManualFlow(t *testing.T) {
	s := newTestDialog(t)

	first := ask(t, s, "دليل", entities.ConversationContext{})
	assert.Equal(t, ProductPrompt(), first.Text)
	assert.Equal(t, entities.AwaitingProductManual, first.Context.Awaiting)
	assert.Len(t, first.Suggestions, 5)

	miss := ask(t, s, "مش فاكر", first.Context)
	assert.Equal(t, ProductReprompt(testKnowledge()), miss.Text)
	assert.Equal(t, entities.AwaitingProductManual, miss.Context.Awaiting)

	second := ask(t, s, "2025", miss.Context)
	assert.Equal(t, "دليل المستخدم:\nhttps://egy-tronix.com/kas-2025.pdf", second.Text)
	assert.Equal(t, entities.AwaitingNone, second.Context.Awaiting)
	assert.Equal(t, "kas_2025", second.Context.LastProductID)
}

func TestRespond_WiringRequestRemembered(t *testing.T) {
	s := newTestDialog(t)

	first := ask(t, s, "مخطط توصيل", entities.ConversationContext{})
	require.Equal(t, entities.AwaitingProductManual, first.Context.Awaiting)

	second := ask(t, s, "2025", first.Context)
	assert.Equal(t, "مخطط التوصيل:\nhttps://egy-tronix.com/kas-2025-wiring.pdf", second.Text)
}

func TestRespond_ManualUsesLastProduct(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "الدليل", entities.ConversationContext{LastProductID: "kas_2021"})
	assert.Equal(t, "دليل 2021:\nhttps://egy-tronix.com/kas-2021.pdf", reply.Text)

	stale := ask(t, s, "الدليل", entities.ConversationContext{LastProductID: "discontinued"})
	assert.Equal(t, entities.AwaitingProductManual, stale.Context.Awaiting)
}

func TestRespond_ManualMissing(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "دليل الميني", entities.ConversationContext{})

	assert.Equal(t, NoManualsReply(entities.Product{URL: "https://egy-tronix.com/p/mini-8"}), reply.Text)
	assert.Equal(t, "mini_8", reply.Context.LastProductID)
}

func TestRespond_PriceStoreMalfunction(t *testing.T) {
	s := newTestDialog(t)

	price := ask(t, s, "الميني بكام", entities.ConversationContext{})
	assert.Equal(t, "price", price.Rule)
	assert.Contains(t, price.Text, "4500 جنيه")
	assert.Equal(t, "mini_8", price.Context.LastProductID)

	general := ask(t, s, "الاسعار", entities.ConversationContext{})
	assert.Contains(t, general.Text, "https://egy-tronix.com/shop/")

	store := ask(t, s, "رابط المتجر", entities.ConversationContext{})
	assert.Equal(t, "store", store.Rule)

	errs := ask(t, s, "رموز الاعطال", entities.ConversationContext{})
	assert.Equal(t, "malfunction", errs.Rule)
	assert.Contains(t, errs.Text, "https://egy-tronix.com/errors/")
}

func TestRespond_SupportGroup(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "لينك الجروب", entities.ConversationContext{})

	assert.Equal(t, "support_group", reply.Rule)
	assert.Contains(t, reply.Text, "https://chat.example.com/doors")
}

func TestRespond_FallbackIsIdempotent(t *testing.T) {
	s := newTestDialog(t)

	first := ask(t, s, "xyz", entities.ConversationContext{Extra: map[string]any{"k": "v"}})
	second := ask(t, s, "xyz", first.Context)

	assert.Equal(t, "fallback", first.Rule)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Context.Map(), second.Context.Map())
	assert.Equal(t, entities.AwaitingNone, second.Context.Awaiting)
	assert.Equal(t, FallbackSuggestions(), second.Suggestions)
}

func TestRespond_EmptyMessageFallsBack(t *testing.T) {
	s := newTestDialog(t)

	reply := ask(t, s, "", entities.ConversationContext{})

	assert.Equal(t, "fallback", reply.Rule)
}

func TestRespond_ContinuationsClose(t *testing.T) {
	s := newTestDialog(t)

	resolving := map[entities.Awaiting]string{
		entities.AwaitingBranchAddress: "فيصل",
		entities.AwaitingDeptContact:   "المبيعات",
		entities.AwaitingProductManual: "2021",
	}
	for state, msg := range resolving {
		t.Run(string(state), func(t *testing.T) {
			reply := ask(t, s, msg, entities.ConversationContext{Awaiting: state, LastUserMessage: "x"})
			assert.Equal(t, entities.AwaitingNone, reply.Context.Awaiting)
			assert.Empty(t, reply.Context.LastUserMessage)
		})
	}
}

func TestRespond_StrictMode(t *testing.T) {
	s := NewDialogService(providerFor(testKnowledge()), ReplyFormatter{Strict: true}, nil)

	reply := ask(t, s, "ازيك", entities.ConversationContext{})

	assert.NotContains(t, reply.Text, "☎")
	assert.Contains(t, reply.Text, "19460")
}

func TestRespond_NoSnapshot(t *testing.T) {
	s := NewDialogService(staticProvider{}, ReplyFormatter{}, nil)

	_, err := s.Respond(context.Background(), entities.Message{Content: "ازيك"}, entities.ConversationContext{})

	assert.ErrorIs(t, err, ErrKnowledgeUnavailable)
}

type panickingProvider struct{}

func (panickingProvider) Current() *entities.Snapshot { panic("boom") }

func TestRespond_PanicBecomesError(t *testing.T) {
	s := NewDialogService(panickingProvider{}, ReplyFormatter{}, nil)

	var err error
	assert.NotPanics(t, func() {
		_, err = s.Respond(context.Background(), entities.Message{Content: "ازيك"}, entities.ConversationContext{})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRespond_DetectorsFollowSnapshot(t *testing.T) {
	k1 := testKnowledge()
	k2 := testKnowledge()
	k2.Branches = append(k2.Branches, entities.Branch{Name: "طنطا", Address: "شارع البحر"})

	p := &swappableProvider{snap: &entities.Snapshot{Version: 1, Knowledge: k1}}
	s := NewDialogService(p, ReplyFormatter{}, nil)

	before := ask(t, s, "عنوان فرع طنطا", entities.ConversationContext{})
	assert.Equal(t, entities.AwaitingBranchAddress, before.Context.Awaiting)

	p.snap = &entities.Snapshot{Version: 2, Knowledge: k2}
	after := ask(t, s, "عنوان فرع طنطا", entities.ConversationContext{})
	assert.Contains(t, after.Text, "شارع البحر")
}

type swappableProvider struct {
	snap *entities.Snapshot
}

func (p *swappableProvider) Current() *entities.Snapshot { return p.snap }
