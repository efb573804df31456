//go:build !integration

package application_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
)

const companyRecord = "Sodiba SARL\ncontact@sodiba.tg\nVente de matériaux de construction\n+22890123456\nBoulevard du 13 Janvier, Lomé"

func TestCancel(t *testing.T) {
	states := map[string]func(h *harness){
		"idle": func(h *harness) {},
		"awaiting company data": func(h *harness) {
			h.mustText("/createcompany")
			h.mustPress("plan:premium")
		},
		"editing a client field": func(h *harness) {
			_, c := h.api.seedCompany(testUser, model.PlanFree)
			cl := h.api.seedClient(c.ID, "Jean Dupont")
			h.mustPress(fmt.Sprintf("client_edit_field_%d_phone", cl.ID))
		},
		"awaiting payment proof with a draft": func(h *harness) {
			h.mustText("/createcompany")
			h.mustPress("plan:premium")
			h.mustText(companyRecord)
			h.mustPress("payment_confirm_premium_create_mobile")
		},
		"corrupt awaiting state": func(h *harness) {
			s := model.NewSession()
			s.Begin(model.Awaiting{Kind: model.AwaitingStockOp})
			s.Set("company_name", "x")
			_ = h.repo.Save(context.Background(), model.SessionKey{ChatID: testChat, UserID: testUser}, s)
		},
	}

	for name, setup := range states {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			setup(h)
			for i := 0; i < 2; i++ {
				h.mustText("/cancel")
				if s := h.session(); !s.IsIdle() {
					t.Fatalf("expected idle session after /cancel #%d, got %+v", i+1, s)
				}
				h.expectKey("cancelled")
			}
		})
	}
}

func TestAwaitingSupersedes(t *testing.T) {
	h := newHarness(t)
	_, c := h.api.seedCompany(testUser, model.PlanPremium)
	a := h.api.seedArticle(c.ID, "Ciment", 10)

	h.mustPress("client_search")
	h.expectAwaiting(model.AwaitingSearch)
	h.mustPress("article_add")
	h.expectAwaiting(model.AwaitingArticleData)
	h.mustPress(fmt.Sprintf("article_stock_remove_%d", a.ID))
	h.expectAwaiting(model.AwaitingStockOp)
	h.mustPress("article_menu")
	h.expectAwaiting(model.AwaitingNone)

	s := h.session()
	if s.Awaiting.EntityID != 0 || s.Awaiting.StockOp != "" {
		t.Errorf("expected no leftover payload, got %+v", s.Awaiting)
	}
}

func TestClientCreation(t *testing.T) {
	t.Run("creates the client and confirms with its reference", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanFree)

		h.mustText("/clients")
		h.expectKey("client_menu")
		h.mustPress("client_add")
		h.expectAwaiting(model.AwaitingClientData)
		h.mustText("Jean Dupont\n+22890123456")

		clients, _ := h.api.ListClients(context.Background(), c.ID, 10)
		if len(clients) != 1 {
			t.Fatalf("expected one client, got %d", len(clients))
		}
		cl := clients[0]
		if cl.Name != "Jean Dupont" || cl.Phone != "+22890123456" || cl.Email != nil {
			t.Errorf("unexpected client %+v", cl)
		}
		h.expectKey("client_created|" + cl.Reference)
		h.expectAwaiting(model.AwaitingNone)
	})

	t.Run("invalid record creates nothing and keeps waiting", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanFree)

		h.mustPress("client_add")
		h.mustText("J")

		if clients, _ := h.api.ListClients(context.Background(), c.ID, 10); len(clients) != 0 {
			t.Fatalf("expected no client, got %d", len(clients))
		}
		h.expectKey("validation_failed")
		h.expectAwaiting(model.AwaitingClientData)

		h.mustText("Jean Dupont\n+22890123456")
		h.expectKey("client_created")
	})

	t.Run("duplicate name is refused without mutation", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanPremium)
		h.api.seedClient(c.ID, "Jean Dupont")

		h.mustPress("client_add")
		h.mustText("jean dupont\n+22890123456")

		if clients, _ := h.api.ListClients(context.Background(), c.ID, 10); len(clients) != 1 {
			t.Fatalf("expected the client count to stay 1, got %d", len(clients))
		}
		h.expectKey("duplicate")
		h.expectAwaiting(model.AwaitingClientData)
	})

	t.Run("free plan limit blocks the add flow", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanFree)
		for _, n := range []string{"A1", "B2", "C3"} {
			h.api.seedClient(c.ID, n)
		}

		h.mustPress("client_add")
		h.expectKey("limit_exceeded")
		h.expectAwaiting(model.AwaitingNone)

		rows := h.bot.lastRows()
		if len(rows) == 0 || rows[0][0].Data != "subscription_upgrade" {
			t.Errorf("expected an upgrade button, got %+v", rows)
		}
	})

	t.Run("transport failure keeps the session for a retry", func(t *testing.T) {
		h := newHarness(t)
		h.api.seedCompany(testUser, model.PlanFree)
		h.mustPress("client_add")

		h.api.Fail["CreateClient"] = fmt.Errorf("create client: %w", domain.ErrTransport)
		err := h.text("Jean Dupont\n+22890123456")
		if !errors.Is(err, domain.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
		h.expectKey("error_generic")
		h.expectAwaiting(model.AwaitingClientData)

		delete(h.api.Fail, "CreateClient")
		h.mustText("Jean Dupont\n+22890123456")
		h.expectKey("client_created")
	})
}

func TestClientEditAndDelete(t *testing.T) {
	h := newHarness(t)
	_, c := h.api.seedCompany(testUser, model.PlanPremium)
	cl := h.api.seedClient(c.ID, "Jean Dupont")

	h.mustPress(fmt.Sprintf("client_edit_field_%d_email", cl.ID))
	h.expectAwaiting(model.AwaitingEditField)

	h.mustText("pas-un-email")
	h.expectKey("validation_failed")
	h.expectAwaiting(model.AwaitingEditField)

	h.mustText("Jean@Example.com")
	h.expectKey("field_updated")
	h.expectAwaiting(model.AwaitingNone)
	got, _ := h.api.GetClient(context.Background(), c.ID, cl.ID)
	if got.Email == nil || *got.Email != "jean@example.com" {
		t.Errorf("expected normalised email, got %v", got.Email)
	}

	h.mustPress(fmt.Sprintf("client_delete_%d", cl.ID))
	h.expectKey("client_delete_confirm")
	if _, err := h.api.GetClient(context.Background(), c.ID, cl.ID); err != nil {
		t.Fatal("client must survive until confirmation")
	}
	h.mustPress(fmt.Sprintf("client_delete_confirm_%d", cl.ID))
	h.expectKey("client_deleted")
	if _, err := h.api.GetClient(context.Background(), c.ID, cl.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected client to be gone, got %v", err)
	}
}

func TestNotFoundReturnsToParentMenu(t *testing.T) {
	h := newHarness(t)
	h.api.seedCompany(testUser, model.PlanPremium)

	h.mustPress("client_search")
	h.mustPress("client_view_999")

	if a := h.bot.lastAnswer(); !a.Alert || a.Text != "not_found" {
		t.Errorf("expected a not_found alert, got %+v", a)
	}
	h.expectKey("client_menu")
	h.expectAwaiting(model.AwaitingNone)
}

func TestSearch(t *testing.T) {
	h := newHarness(t)
	_, c := h.api.seedCompany(testUser, model.PlanPremium)
	h.api.seedArticle(c.ID, "Ciment CPJ 45", 10)
	h.api.seedArticle(c.ID, "Fer à béton", 10)

	h.mustPress("article_search")
	h.mustText("ciment")
	h.expectKey("search_results|1")
	if rows := h.bot.lastRows(); len(rows) != 2 || !strings.HasPrefix(rows[0][0].Data, "article_view_") {
		t.Errorf("expected one result button plus back, got %+v", rows)
	}

	h.mustPress("article_search")
	h.mustText("tuile")
	h.expectKey("search_no_results|tuile")
	h.expectAwaiting(model.AwaitingNone)
}

func TestStockAdjustment(t *testing.T) {
	t.Run("remove 7 from 10 leaves 3 with a low stock warning", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanPremium)
		a := h.api.seedArticle(c.ID, "Ciment", 10)

		h.mustPress(fmt.Sprintf("article_stock_remove_%d", a.ID))
		h.mustText("7")

		got, _ := h.api.GetArticle(context.Background(), c.ID, a.ID)
		if got.Stock != 3 {
			t.Fatalf("expected stock 3, got %d", got.Stock)
		}
		ms, _ := h.api.ListMovements(context.Background(), c.ID, a.ID, 10)
		if len(ms) != 1 || ms[0].Type != model.MovementExit || ms[0].Quantity != 7 {
			t.Fatalf("expected one exit movement of 7, got %+v", ms)
		}
		h.expectKey("stock_low_warning|3|5")
		h.expectAwaiting(model.AwaitingNone)
	})

	t.Run("removing more than available changes nothing", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanPremium)
		a := h.api.seedArticle(c.ID, "Ciment", 10)

		h.mustPress(fmt.Sprintf("article_stock_remove_%d", a.ID))
		h.mustText("11")

		got, _ := h.api.GetArticle(context.Background(), c.ID, a.ID)
		if got.Stock != 10 {
			t.Fatalf("expected stock to stay 10, got %d", got.Stock)
		}
		if ms, _ := h.api.ListMovements(context.Background(), c.ID, a.ID, 10); len(ms) != 0 {
			t.Fatalf("expected no movement, got %d", len(ms))
		}
		h.expectKey("stock_insufficient")
		h.expectAwaiting(model.AwaitingStockOp)
	})

	t.Run("replace sets the literal value without warning above the threshold", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanPremium)
		a := h.api.seedArticle(c.ID, "Ciment", 2)

		h.mustPress(fmt.Sprintf("article_stock_replace_%d", a.ID))
		h.mustText("40")

		got, _ := h.api.GetArticle(context.Background(), c.ID, a.ID)
		if got.Stock != 40 {
			t.Fatalf("expected stock 40, got %d", got.Stock)
		}
		if strings.Contains(h.bot.lastText(), "stock_low_warning") {
			t.Error("did not expect a low stock warning")
		}
	})

	t.Run("stock command records a movement", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanPremium)
		a := h.api.seedArticle(c.ID, "Ciment", 10)

		h.mustText(fmt.Sprintf("/stock %d entry 5", a.ID))
		got, _ := h.api.GetArticle(context.Background(), c.ID, a.ID)
		if got.Stock != 15 {
			t.Fatalf("expected stock 15, got %d", got.Stock)
		}
		h.expectKey("stock_updated")

		h.mustText(fmt.Sprintf("/stock %d transfer 5", a.ID))
		h.expectKey("validation_failed")
	})

	t.Run("stock command reports the applied change", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanPremium)
		a := h.api.seedArticle(c.ID, "Ciment", 10)
		// another user empties part of the stock just before this adjustment lands
		h.api.BeforeFunc = func(op string) {
			if op == "AdjustArticleStock" {
				h.api.mu.Lock()
				h.api.articles[a.ID].Stock = 3
				h.api.mu.Unlock()
			}
		}

		h.mustText(fmt.Sprintf("/stock %d exit 2", a.ID))
		if got := h.bot.lastText(); !strings.Contains(got, "stock_updated|Ciment|movement_exit|2|3|1|sac") {
			t.Fatalf("expected the applied 3 -> 1 change, got %q", got)
		}
		h.expectKey("stock_low_warning")
	})
}

func TestArticleCreationRecordsInitialMovement(t *testing.T) {
	h := newHarness(t)
	_, c := h.api.seedCompany(testUser, model.PlanPremium)

	h.mustPress("article_add")
	h.mustText("Ciment CPJ 45\n5000\n20\nsac")

	items, _ := h.api.ListArticles(context.Background(), c.ID, 10)
	if len(items) != 1 || items[0].Stock != 20 {
		t.Fatalf("unexpected articles %+v", items)
	}
	ms, _ := h.api.ListMovements(context.Background(), c.ID, items[0].ID, 10)
	if len(ms) != 1 || ms[0].Type != model.MovementEntry || ms[0].Quantity != 20 {
		t.Fatalf("expected an entry movement of 20, got %+v", ms)
	}
	h.expectKey("article_created|" + items[0].Reference)
}

func TestCompanyCreation(t *testing.T) {
	t.Run("free plan is created active for one month", func(t *testing.T) {
		h := newHarness(t)
		h.mustText("/createcompany")
		h.expectKey("company_choose_plan")
		h.mustPress("plan:free")
		h.expectAwaiting(model.AwaitingCompanyData)
		h.mustText(companyRecord)

		u, err := h.api.FindUserByPlatformID(context.Background(), testUser)
		if err != nil {
			t.Fatalf("expected owner user, got %v", err)
		}
		c, _ := h.api.GetCompany(context.Background(), u.CompanyID)
		if !c.IsActive || c.PlanStatus != model.PlanStatusActive {
			t.Fatalf("expected an active company, got %+v", c)
		}
		wantStart := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
		if c.PlanStart == nil || !c.PlanStart.Equal(wantStart) || !c.PlanEnd.Equal(wantStart.AddDate(0, 1, 0)) {
			t.Errorf("unexpected plan period %v - %v", c.PlanStart, c.PlanEnd)
		}
		h.expectKey("company_created|Sodiba SARL")
		h.expectKey("contact@sodiba.tg|Sodiba SARL")
		if s := h.session(); !s.IsIdle() {
			t.Errorf("expected idle session, got %+v", s)
		}
	})

	t.Run("premium plan asks for a payment method first", func(t *testing.T) {
		h := newHarness(t)
		h.mustText("/createcompany")
		h.mustPress("plan:premium")
		h.mustText(companyRecord)

		if _, err := h.api.FindUserByPlatformID(context.Background(), testUser); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected no company yet, got %v", err)
		}
		h.expectKey("company_choose_method")
		rows := h.bot.lastRows()
		if len(rows) < 2 || rows[0][0].Data != "payment_method_premium_create_mobile" {
			t.Errorf("unexpected method buttons %+v", rows)
		}
		s := h.session()
		if _, ok := s.Get(model.ScratchCompanyDraft); !ok {
			t.Error("expected the draft to be kept in the session")
		}
		if !s.Awaiting.IsNone() {
			t.Errorf("expected no awaiting state, got %s", s.Awaiting.Kind)
		}
	})

	t.Run("paid onboarding ends with a pending company and an admin notice", func(t *testing.T) {
		h := newHarness(t)
		h.mustText("/createcompany")
		h.mustPress("plan:enterprise")
		h.mustText(companyRecord)
		h.mustPress("payment_method_enterprise_create_bank")
		h.expectKey("payment_instructions|plan_name_enterprise|payment_action_create|45 000 XOF")
		h.mustPress("payment_confirm_enterprise_create_bank")
		h.expectAwaiting(model.AwaitingPaymentProof)

		if err := h.file("AgACAgQ"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		u, err := h.api.FindUserByPlatformID(context.Background(), testUser)
		if err != nil {
			t.Fatalf("expected owner user, got %v", err)
		}
		c, _ := h.api.GetCompany(context.Background(), u.CompanyID)
		if c.IsActive || c.PlanStatus != model.PlanStatusPendingReview || c.PlanStart != nil {
			t.Fatalf("expected an inactive pending company without dates, got %+v", c)
		}
		if len(h.api.payments) != 1 || h.api.payments[0].Submission.Amount != 45000 {
			t.Fatalf("expected one payment of 45000, got %+v", h.api.payments)
		}
		if len(h.notifier.texts) != 1 || h.notifier.files[0] == nil || h.notifier.files[0].FileID != "AgACAgQ" {
			t.Fatalf("expected admins to receive the proof file, got %+v", h.notifier.files)
		}
		h.expectKey("payment_proof_received")
		if s := h.session(); !s.IsIdle() {
			t.Errorf("expected idle session, got %+v", s)
		}
	})

	t.Run("invalid company record keeps the plan", func(t *testing.T) {
		h := newHarness(t)
		h.mustText("/createcompany")
		h.mustPress("plan:premium")
		h.mustText("Sodiba\nnot-an-email")

		h.expectKey("validation_failed")
		h.expectAwaiting(model.AwaitingCompanyData)
		if v, _ := h.session().Get(model.ScratchSelectedPlan); v != "premium" {
			t.Errorf("expected the selected plan to survive, got %q", v)
		}
	})

	t.Run("owners cannot create a second company", func(t *testing.T) {
		h := newHarness(t)
		h.api.seedCompany(testUser, model.PlanFree)
		h.mustText("/createcompany")
		h.expectKey("company_exists")
	})

	t.Run("plan cancel clears everything", func(t *testing.T) {
		h := newHarness(t)
		h.mustText("/createcompany")
		h.mustPress("plan:premium")
		h.mustPress("plan:cancel")
		h.expectKey("company_cancelled")
		if s := h.session(); !s.IsIdle() {
			t.Errorf("expected idle session, got %+v", s)
		}
	})
}

func TestSubscriptionFlow(t *testing.T) {
	t.Run("upgrade submits a text proof", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanFree)

		h.mustText("/subscription")
		h.expectKey("subscription_summary|Sodiba")
		h.mustPress("subscription_upgrade")
		h.expectKey("plan_benefits_premium")
		h.mustPress("subscription_upgrade_premium")
		h.mustPress("payment_method_premium_upgrade_mobile")
		h.mustPress("payment_confirm_premium_upgrade_mobile")
		h.mustText("  TX-889977  ")

		got, _ := h.api.GetCompany(context.Background(), c.ID)
		if got.PlanStatus != model.PlanStatusPendingReview || got.Plan != model.PlanFree {
			t.Fatalf("expected a pending review on the current plan, got %+v", got)
		}
		p := h.api.payments[0].Submission
		if p.Proof.Text != "TX-889977" || p.Intent.Action != model.PaymentActionUpgrade {
			t.Errorf("unexpected submission %+v", p)
		}
		if !strings.Contains(h.notifier.texts[0], "TX-889977") || h.notifier.files[0] != nil {
			t.Errorf("unexpected admin notice %q", h.notifier.texts[0])
		}
	})

	t.Run("pending payment blocks a second one", func(t *testing.T) {
		h := newHarness(t)
		_, c := h.api.seedCompany(testUser, model.PlanPremium)
		h.api.companies[c.ID].PlanStatus = model.PlanStatusPendingReview

		h.mustPress("subscription_renew")
		h.expectKey("payment_already_pending")
	})

	t.Run("upgrade to a lower tier is refused", func(t *testing.T) {
		h := newHarness(t)
		h.api.seedCompany(testUser, model.PlanEnterprise)
		h.mustPress("payment_confirm_premium_upgrade_bank")
		if a := h.bot.lastAnswer(); !a.Alert || a.Text != "invalid_input" {
			t.Errorf("expected an invalid_input alert, got %+v", a)
		}
		h.expectAwaiting(model.AwaitingNone)
	})

	t.Run("users without a company are sent to onboarding", func(t *testing.T) {
		h := newHarness(t)
		h.mustText("/subscription")
		h.expectKey("no_company")
	})
}

func TestDispatcherRobustness(t *testing.T) {
	t.Run("unknown callback leaves the state untouched", func(t *testing.T) {
		h := newHarness(t)
		h.api.seedCompany(testUser, model.PlanFree)
		h.mustPress("client_search")
		h.mustPress("invoice_print_3")
		if a := h.bot.lastAnswer(); a.Text != "unknown_action" {
			t.Errorf("expected unknown_action, got %+v", a)
		}
		h.expectAwaiting(model.AwaitingSearch)
	})

	t.Run("unknown command replies with a hint", func(t *testing.T) {
		h := newHarness(t)
		h.mustText("/invoices")
		h.expectKey("unknown_command")
	})

	t.Run("text without awaiting state gets help", func(t *testing.T) {
		h := newHarness(t)
		h.mustText("bonjour")
		h.expectKey("unknown_message")
	})

	t.Run("corrupt state is cleared with an apology", func(t *testing.T) {
		h := newHarness(t)
		s := model.NewSession()
		s.Begin(model.AwaitCompanyData())
		_ = h.repo.Save(context.Background(), model.SessionKey{ChatID: testChat, UserID: testUser}, s)

		h.mustText(companyRecord)
		h.expectKey("state_reset")
		if s := h.session(); !s.IsIdle() {
			t.Errorf("expected idle session, got %+v", s)
		}
	})

	t.Run("panics are recovered", func(t *testing.T) {
		h := newHarness(t)
		h.api.seedCompany(testUser, model.PlanFree)
		h.api.PanicOn = "GetCompany"

		err := h.text("/subscription")
		if err == nil || !strings.Contains(err.Error(), "panic") {
			t.Fatalf("expected a panic error, got %v", err)
		}
		h.expectKey("error_generic")
	})

	t.Run("busy session is reported", func(t *testing.T) {
		h := newHarness(t)
		token, err := h.locker.TryLock(context.Background(), "session_lock:-100:7", time.Minute)
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		defer h.locker.Unlock(context.Background(), "session_lock:-100:7", token)

		if err := h.text("/help"); !errors.Is(err, domain.ErrLockNotAcquired) {
			t.Fatalf("expected ErrLockNotAcquired, got %v", err)
		}
		h.expectKey("busy")
	})

	t.Run("cancel waits out a busy session", func(t *testing.T) {
		h := newHarness(t)
		s := model.NewSession()
		s.Begin(model.AwaitClientData())
		_ = h.repo.Save(context.Background(), model.SessionKey{ChatID: testChat, UserID: testUser}, s)
		if _, err := h.locker.TryLock(context.Background(), "session_lock:-100:7", 200*time.Millisecond); err != nil {
			t.Fatalf("lock: %v", err)
		}

		h.mustText("/cancel")
		h.expectKey("cancelled")
		if s := h.session(); !s.IsIdle() {
			t.Errorf("expected idle session, got %+v", s)
		}
	})

	t.Run("unreadable session is reset with an apology", func(t *testing.T) {
		for _, text := range []string{"/cancel", "bonjour"} {
			h := newHarness(t)
			s := model.NewSession()
			s.Begin(model.AwaitClientData())
			_ = h.repo.Save(context.Background(), model.SessionKey{ChatID: testChat, UserID: testUser}, s)
			h.unread.breakNext()

			h.mustText(text)
			h.expectKey("state_reset")
			if strings.Contains(h.bot.lastText(), "error_generic") {
				t.Errorf("%s: expected no generic error", text)
			}
			if s := h.session(); !s.IsIdle() {
				t.Errorf("%s: expected the unreadable session to be dropped, got %+v", text, s)
			}
		}
	})

	t.Run("callbacks are always answered and edit in place", func(t *testing.T) {
		h := newHarness(t)
		h.api.seedCompany(testUser, model.PlanFree)
		h.mustPress("menu_main")
		if len(h.bot.answers) != 1 {
			t.Fatalf("expected one callback answer, got %d", len(h.bot.answers))
		}
		if len(h.bot.edited) != 1 || h.bot.edited[0].MessageID != 42 {
			t.Fatalf("expected the keyboard message to be edited, got %+v", h.bot.edited)
		}
	})

	t.Run("failed edit falls back to a new message", func(t *testing.T) {
		h := newHarness(t)
		h.bot.EditMessageFunc = func(_ adapter.EditMessageParams) error { return errors.New("message is too old") }
		h.mustPress("menu_main")
		if len(h.bot.sent) != 1 {
			t.Fatalf("expected a new message, got %d", len(h.bot.sent))
		}
	})
}
