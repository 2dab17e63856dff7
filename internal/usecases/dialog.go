package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"kasbot/internal/entities"
	"kasbot/internal/interfaces"
	"kasbot/internal/observability"
)

// ErrKnowledgeUnavailable is returned when no knowledge snapshot has been published yet.
var ErrKnowledgeUnavailable = errors.New("knowledge snapshot unavailable")

// turn is the working state of one Respond call.
type turn struct {
	raw  string
	m    string // normalized raw
	k    *entities.Knowledge
	d    *Detectors
	next entities.ConversationContext
}

func (t *turn) reply(text string, suggestions ...entities.Suggestion) entities.Reply {
	return entities.Reply{Text: text, Context: t.next, Suggestions: suggestions}
}

// dialogRule is one entry of the fresh-intent table. Rules are tried in order
// and the first whose match returns true answers the turn.
type dialogRule struct {
	name   string
	match  func(t *turn) bool
	handle func(t *turn) entities.Reply
}

type detectorsEntry struct {
	knowledge *entities.Knowledge
	detectors *Detectors
}

// DialogService resolves a message plus the caller's context into a reply and
// the next context. It keeps no per-conversation state.
type DialogService struct {
	provider  interfaces.KnowledgeProvider
	formatter ReplyFormatter
	logger    *observability.Logger

	rules         []dialogRule
	continuations map[entities.Awaiting]func(t *turn) entities.Reply
	detectors     atomic.Pointer[detectorsEntry]
}

func NewDialogService(provider interfaces.KnowledgeProvider, formatter ReplyFormatter, logger *observability.Logger) *DialogService {
	if logger == nil {
		logger = observability.Nop()
	}
	s := &DialogService{
		provider:  provider,
		formatter: formatter,
		logger:    logger.WithComponent("dialog"),
	}
	s.continuations = map[entities.Awaiting]func(t *turn) entities.Reply{
		entities.AwaitingBranchAddress: s.continueBranchAddress,
		entities.AwaitingDeptContact:   s.continueDeptContact,
		entities.AwaitingProductManual: s.continueProductManual,
	}
	// Precedence matters: several predicates can match the same message.
	s.rules = []dialogRule{
		{name: "greeting", match: func(t *turn) bool { return t.d.IsGreeting(t.m) }, handle: s.handleGreeting},
		{name: "malfunction", match: func(t *turn) bool { return IsMalfunctionIntent(t.m) }, handle: s.handleMalfunction},
		{name: "store", match: func(t *turn) bool { return IsStoreIntent(t.m) }, handle: s.handleStore},
		{name: "price", match: func(t *turn) bool { return IsPriceIntent(t.m) }, handle: s.handlePrice},
		{name: "support_group", match: func(t *turn) bool { return IsSupportGroupIntent(t.m) }, handle: s.handleSupportGroup},
		{name: "address", match: func(t *turn) bool { return IsAddressIntent(t.m) }, handle: s.handleAddress},
		{name: "department", match: func(t *turn) bool { return IsDepartmentIntent(t.m) }, handle: s.handleDepartment},
		{name: "manual", match: func(t *turn) bool { return IsManualIntent(t.m) || IsWiringIntent(t.m) }, handle: s.handleManual},
		{name: "product", match: mentionsProduct, handle: s.handleProduct},
		{name: "fallback", match: func(*turn) bool { return true }, handle: s.handleFallback},
	}
	return s
}

// RuleNames lists the fresh-intent rules in evaluation order.
func (s *DialogService) RuleNames() []string {
	names := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		names = append(names, r.name)
	}
	return names
}

// Respond answers one turn. A panic during lookup or formatting is returned
// as an error; the caller decides how to surface it.
func (s *DialogService) Respond(ctx context.Context, msg entities.Message, convCtx entities.ConversationContext) (reply entities.Reply, err error) {
	log := s.logger.WithContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			reply = entities.Reply{}
			err = fmt.Errorf("dialog: recovered from panic: %v", r)
		}
	}()

	snap := s.provider.Current()
	if snap == nil || snap.Knowledge == nil {
		return entities.Reply{}, ErrKnowledgeUnavailable
	}

	t := &turn{
		raw:  msg.Content,
		m:    Normalize(msg.Content),
		k:    snap.Knowledge,
		d:    s.detectorsFor(snap.Knowledge),
		next: convCtx.Clone(),
	}

	if cont, ok := s.continuations[t.next.Awaiting]; ok {
		reply = cont(t)
		reply.Rule = "continue_" + string(convCtx.Awaiting)
	} else {
		for _, r := range s.rules {
			if r.match(t) {
				reply = r.handle(t)
				reply.Rule = r.name
				break
			}
		}
	}
	reply.Text = s.formatter.Finish(reply.Text)

	log.Debug().
		Str("rule", reply.Rule).
		Str("platform", msg.Platform).
		Str("awaiting", string(reply.Context.Awaiting)).
		Uint64("knowledge_version", snap.Version).
		Msg("dialog turn resolved")
	return reply, nil
}

// detectorsFor caches detectors per knowledge snapshot.
func (s *DialogService) detectorsFor(k *entities.Knowledge) *Detectors {
	if e := s.detectors.Load(); e != nil && e.knowledge == k {
		return e.detectors
	}
	d := NewDetectors(k)
	s.detectors.Store(&detectorsEntry{knowledge: k, detectors: d})
	return d
}

// await enters a continuation state and remembers what was asked.
func (t *turn) await(a entities.Awaiting) {
	t.next.Awaiting = a
	t.next.LastUserMessage = t.raw
}

// settle leaves a continuation state.
func (t *turn) settle() {
	t.next.Awaiting = entities.AwaitingNone
	t.next.LastUserMessage = ""
}

func (s *DialogService) continueBranchAddress(t *turn) entities.Reply {
	name, ok := t.d.DetectBranch(t.m)
	if !ok {
		return t.reply(BranchReprompt(t.k), namesAsSuggestions(t.k.BranchNames())...)
	}
	t.settle()
	return s.answerBranch(t, name)
}

func (s *DialogService) continueDeptContact(t *turn) entities.Reply {
	if name, ok := t.d.DetectDepartment(t.m); ok {
		if dep, found := t.d.FindDepartment(name); found {
			hint := s.departmentHint(t)
			t.settle()
			t.next.LastDept = name
			return t.reply(DepartmentReply(name, dep, hint))
		}
	}
	return t.reply(DepartmentMenu(t.k), namesAsSuggestions(t.k.DepartmentNames())...)
}

func (s *DialogService) continueProductManual(t *turn) entities.Reply {
	id, ok := t.d.DetectProduct(t.m)
	if !ok {
		return t.reply(ProductReprompt(t.k), ProductSuggestions(t.k)...)
	}
	wiring := IsWiringIntent(t.m) || IsWiringIntent(Normalize(t.next.LastUserMessage))
	t.settle()
	return s.answerManual(t, id, wiring)
}

func (s *DialogService) handleGreeting(t *turn) entities.Reply {
	return t.reply(GreetingReply(t.k))
}

func (s *DialogService) handleMalfunction(t *turn) entities.Reply {
	return t.reply(MalfunctionsReply(t.k))
}

func (s *DialogService) handleStore(t *turn) entities.Reply {
	return t.reply(StoreReply(t.k))
}

func (s *DialogService) handlePrice(t *turn) entities.Reply {
	id, ok := t.d.DetectProduct(t.m)
	if !ok {
		return t.reply(PriceReply(t.k, nil))
	}
	p, _ := t.k.Product(id)
	t.next.LastProductID = id
	return t.reply(PriceReply(t.k, &p))
}

func (s *DialogService) handleSupportGroup(t *turn) entities.Reply {
	return t.reply(SupportGroupReply(t.k))
}

func (s *DialogService) handleAddress(t *turn) entities.Reply {
	name, ok := t.d.DetectBranch(t.m)
	if !ok {
		t.await(entities.AwaitingBranchAddress)
		return t.reply(BranchMenu(t.k), namesAsSuggestions(t.k.BranchNames())...)
	}
	return s.answerBranch(t, name)
}

func (s *DialogService) answerBranch(t *turn, name string) entities.Reply {
	t.next.LastBranch = name
	b, found := t.d.FindBranch(name)
	if !found || b.Address == "" {
		return t.reply(AddressMissingReply(name))
	}
	return t.reply(BranchAddressReply(name, b))
}

func (s *DialogService) handleDepartment(t *turn) entities.Reply {
	name, ok := t.d.DetectDepartment(t.m)
	if !ok {
		t.await(entities.AwaitingDeptContact)
		return t.reply(DepartmentMenu(t.k), namesAsSuggestions(t.k.DepartmentNames())...)
	}
	t.next.LastDept = name
	dep, found := t.d.FindDepartment(name)
	if !found {
		return t.reply(DepartmentMissingReply(name))
	}
	return t.reply(DepartmentReply(name, dep, s.departmentHint(t)))
}

// departmentHint is the support-group invitation when this message or the
// one that opened the continuation talks about doors.
func (s *DialogService) departmentHint(t *turn) string {
	if IsDoorTopic(t.m) || IsDoorTopic(Normalize(t.next.LastUserMessage)) {
		return DoorGroupHint(t.k)
	}
	return ""
}

func (s *DialogService) handleManual(t *turn) entities.Reply {
	id, ok := t.d.DetectProduct(t.m)
	if !ok && t.next.LastProductID != "" {
		_, ok = t.k.Product(t.next.LastProductID)
		id = t.next.LastProductID
	}
	if !ok {
		t.await(entities.AwaitingProductManual)
		return t.reply(ProductPrompt(), ProductSuggestions(t.k)...)
	}
	return s.answerManual(t, id, IsWiringIntent(t.m))
}

func (s *DialogService) answerManual(t *turn, id string, wiring bool) entities.Reply {
	t.next.LastProductID = id
	p, _ := t.k.Product(id)
	if len(p.Manuals) == 0 {
		return t.reply(NoManualsReply(p))
	}
	return t.reply(ManualReply(pickManual(p.Manuals, wiring)))
}

// pickManual returns the first manual, or the first wiring-labelled one when
// wiring was asked for and there is a choice.
func pickManual(manuals []entities.Manual, wiring bool) entities.Manual {
	if wiring && len(manuals) > 1 {
		for _, m := range manuals {
			if IsWiringIntent(Normalize(m.Title)) {
				return m
			}
		}
	}
	return manuals[0]
}

func mentionsProduct(t *turn) bool {
	_, ok := t.d.DetectProduct(t.m)
	return ok
}

func (s *DialogService) handleProduct(t *turn) entities.Reply {
	id, _ := t.d.DetectProduct(t.m)
	t.next.LastProductID = id
	p, _ := t.k.Product(id)
	hint := ""
	if p.IsDoor() {
		hint = DoorGroupHint(t.k)
	}
	return t.reply(ProductReply(p, hint))
}

func (s *DialogService) handleFallback(t *turn) entities.Reply {
	return t.reply(FallbackReply(t.k), FallbackSuggestions()...)
}
