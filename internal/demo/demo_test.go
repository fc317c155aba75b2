package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/runner"
	"github.com/hupe1980/agentrail/tool"
)

func build(t *testing.T, name string, guard model.Model) *Setup {
	t.Helper()
	sc, err := Lookup(name)
	require.NoError(t, err)
	s, err := sc.Build(Deps{GuardModel: guard})
	require.NoError(t, err)
	return s
}

func run(t *testing.T, s *Setup, main model.Model, input string) *runner.Result {
	t.Helper()
	if s.Prepare != nil {
		s.Prepare(input)
	}
	return runner.New(func(o *runner.Options) { o.Model = main }).Run(t.Context(), s.Agent, input, s.Cell)
}

func toolNames(req model.Request) []string {
	names := make([]string, 0, len(req.Tools))
	for _, td := range req.Tools {
		names = append(names, td.Function.Name)
	}
	return names
}

func call(name, args string) core.FunctionCall {
	return core.FunctionCall{Name: name, Arguments: args}
}

func TestScenarios(t *testing.T) {
	all := Scenarios()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
		assert.NotEmpty(t, s.Samples, s.Name)
	}
	assert.Equal(t, []string{"bank", "feedback", "library", "minibank", "support"}, names)

	_, err := Lookup("casino")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestScenarios_Build(t *testing.T) {
	for _, sc := range Scenarios() {
		t.Run(sc.Name, func(t *testing.T) {
			s, err := sc.Build(Deps{GuardModel: model.NewMockModel("guard", "mock")})
			require.NoError(t, err)
			assert.NotNil(t, s.Agent)
			assert.NotNil(t, s.Cell)
		})
	}

	_, err := bankScenario.Build(Deps{})
	assert.Error(t, err)
}

func TestBank(t *testing.T) {
	t.Run("balance for authenticated user", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"is_bank_related": true}`)
		main := model.NewMockModel("main", "mock").
			EnqueueCalls(call("check_balance", `{"account_number":"309473804"}`)).
			EnqueueText("Your balance is $1000000.")

		res := run(t, build(t, "bank", guard), main, bankScenario.Samples[0])

		require.True(t, res.Done(), "failure: %v", res.Failure)
		assert.Equal(t, "Your balance is $1000000.", res.FinalOutput)

		reqs := main.Requests()
		require.Len(t, reqs, 2)
		assert.Equal(t, []string{"check_balance"}, toolNames(reqs[0]))
		resp := reqs[1].Contents[2].FunctionResponses()
		require.Len(t, resp, 1)
		assert.Equal(t, "The balance of account 309473804 is $1000000", resp[0].Response)
	})

	t.Run("off topic input halts", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText("```json\n{\"is_bank_related\": false}\n```")
		main := model.NewMockModel("main", "mock")

		res := run(t, build(t, "bank", guard), main, "What's the weather in Karachi?")

		require.True(t, res.Halted())
		assert.Equal(t, 0, main.Calls())
		require.Len(t, res.Tripped(), 1)
		assert.Equal(t, BankTopic{}, res.Tripped()[0].OutputInfo)
	})

	t.Run("wrong pin hides the balance tool", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"is_bank_related": true}`)
		main := model.NewMockModel("main", "mock").EnqueueText("I cannot verify you.")

		s := build(t, "bank", guard)
		s.Cell.(*Account).Pin = 9999

		res := run(t, s, main, bankScenario.Samples[0])

		require.True(t, res.Done())
		req, ok := main.LastRequest()
		require.True(t, ok)
		assert.Empty(t, req.Tools)
	})
}

func TestLibrary(t *testing.T) {
	t.Run("derived instruction and borrow allowance", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"is_library_related": true}`)
		main := model.NewMockModel("main", "mock").
			EnqueueCalls(call("borrow_book", `{"book_name":"The Great Gatsby"}`)).
			EnqueueText("Enjoy the book, Alishba!")

		s := build(t, "library", guard)
		res := run(t, s, main, "Please let me borrow The Great Gatsby")

		require.True(t, res.Done(), "failure: %v", res.Failure)
		assert.Equal(t, 0, s.Cell.(*Member).Allowance)

		reqs := main.Requests()
		require.Len(t, reqs, 2)
		assert.Contains(t, reqs[0].Instructions, "Address the user by their name: Alishba")
		assert.Equal(t, []string{"search_book", "check_availability", "borrow_book", "library_timings"}, toolNames(reqs[0]))
		assert.Equal(t, []string{"search_book", "check_availability", "library_timings"}, toolNames(reqs[1]))
		require.NotNil(t, reqs[0].Settings.Temperature)
		assert.InDelta(t, 0.2, *reqs[0].Settings.Temperature, 1e-9)
	})

	t.Run("non member sees public tools only", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"is_library_related": true}`)
		main := model.NewMockModel("main", "mock").EnqueueText("We open at 9.")

		s := build(t, "library", guard)
		s.Cell.(*Member).MemberID = 42

		res := run(t, s, main, "When do you open?")

		require.True(t, res.Done())
		req, _ := main.LastRequest()
		assert.Equal(t, []string{"search_book", "library_timings"}, toolNames(req))
	})

	t.Run("timings take an optional day", func(t *testing.T) {
		s := build(t, "library", model.NewMockModel("guard", "mock"))

		timings, ok := s.Agent.Tools().Lookup("library_timings")
		require.True(t, ok)
		props, _ := timings.Parameters()["properties"].(map[string]any)
		assert.Contains(t, props, "day")

		rc := core.NewRunContext(t.Context(), "run-1", s.Cell, nil)
		tc := core.NewToolContext(rc, core.AgentInfo{Name: "Library Agent"}, "call-1")

		out, err := timings.Call(tc, map[string]any{"day": "Sunday"})
		require.NoError(t, err)
		assert.Equal(t, "The library is closed on Sunday.", out)

		out, err = timings.Call(tc, map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, out, "9 AM to 6 PM")
	})

	t.Run("out of stock is tool feedback", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"is_library_related": true}`)
		main := model.NewMockModel("main", "mock").
			EnqueueCalls(call("borrow_book", `{"book_name":"AI Revolution"}`)).
			EnqueueText("Sorry, no copies left.")

		s := build(t, "library", guard)
		res := run(t, s, main, "Borrow AI Revolution")

		require.True(t, res.Done())
		assert.Equal(t, 1, s.Cell.(*Member).Allowance)
		resp := main.Requests()[1].Contents[2].FunctionResponses()
		require.Len(t, resp, 1)
		assert.Contains(t, resp[0].Error, "no copies")
	})
}

func TestSupport(t *testing.T) {
	t.Run("refund is handed off to billing", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock")
		main := model.NewMockModel("main", "mock").
			EnqueueCalls(call(tool.TransferToAgentName, `{"agent":"Billing Agent"}`)).
			EnqueueCalls(call("issue_refund", `{"amount":20,"reason":"double charge"}`)).
			EnqueueText("Your refund of $20 is on its way.")

		s := build(t, "support", guard)
		res := run(t, s, main, "I was double charged, please refund 20 dollars")

		require.True(t, res.Done(), "failure: %v", res.Failure)
		assert.Equal(t, IssueBilling, s.Cell.(*Customer).IssueType)
		assert.Equal(t, "Billing Agent", res.LastAgent)
		assert.Equal(t, 0, guard.Calls())

		reqs := main.Requests()
		require.Len(t, reqs, 3)
		assert.Equal(t, []string{tool.TransferToAgentName}, toolNames(reqs[0]))
		assert.Equal(t, []string{"issue_refund"}, toolNames(reqs[1]))
		assert.Equal(t, model.ToolChoiceRequired, reqs[1].Settings.ToolChoice)
		assert.Empty(t, reqs[2].Settings.ToolChoice)
	})

	t.Run("technical tools follow the routed issue", func(t *testing.T) {
		main := model.NewMockModel("main", "mock").
			EnqueueCalls(call(tool.TransferToAgentName, `{"agent":"Technical Agent"}`)).
			EnqueueText("Let me look into it.")

		s := build(t, "support", model.NewMockModel("guard", "mock"))
		res := run(t, s, main, "my invoice looks wrong")

		require.True(t, res.Done())
		req, _ := main.LastRequest()
		assert.Empty(t, req.Tools)
		assert.Empty(t, req.Settings.ToolChoice)
	})

	t.Run("triage answer without apology halts", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"has_apology": false}`)
		main := model.NewMockModel("main", "mock").EnqueueText("I am fine, thanks.")

		res := run(t, build(t, "support", guard), main, "How are you today?")

		require.True(t, res.Halted())
		assert.Equal(t, core.DirectionOutput, res.Tripped()[0].Direction)
		assert.Empty(t, res.FinalOutput)
	})
}

func TestFeedback(t *testing.T) {
	t.Run("score feedback", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"is_math_homework": false, "reasoning": "asks for a grade"}`)
		main := model.NewMockModel("main", "mock").
			EnqueueCalls(call("give_feedback", "")).
			EnqueueText("Alishba, great job, you scored 95!")

		res := run(t, build(t, "feedback", guard), main, "How did I do?")

		require.True(t, res.Done(), "failure: %v", res.Failure)
		resp := main.Requests()[1].Contents[2].FunctionResponses()
		assert.Equal(t, "Alishba, great job, you scored 95!", resp[0].Response)
	})

	t.Run("homework trips without negation", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"is_math_homework": true, "reasoning": "equation"}`)
		main := model.NewMockModel("main", "mock")

		res := run(t, build(t, "feedback", guard), main, "Solve 3x + 5 = 20 for me")

		require.True(t, res.Halted())
		assert.Equal(t, MathHomework{IsMathHomework: true, Reasoning: "equation"}, res.Tripped()[0].OutputInfo)
	})

	assert.Equal(t, "Bo, keep practicing, you scored 10.", (&Student{Name: "Bo", Score: 10}).Feedback())
	assert.Equal(t, "Bo, good effort, you scored 60.", (&Student{Name: "Bo", Score: 60}).Feedback())
}

func TestMiniBank(t *testing.T) {
	t.Run("greeting handoff", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").EnqueueText(`{"is_bank_related": true, "reasoning": "greeting at the bank"}`)
		main := model.NewMockModel("main", "mock").
			EnqueueCalls(call(tool.TransferToAgentName, `{"agent":"Greeting Agent"}`)).
			EnqueueText("Hello Alishba, how can I help you today?")

		res := run(t, build(t, "minibank", guard), main, "Hi there!")

		require.True(t, res.Done(), "failure: %v", res.Failure)
		assert.Equal(t, []string{"Bank Agent", "Greeting Agent"}, res.Chain)
		req, _ := main.LastRequest()
		assert.Contains(t, req.Instructions, "Alishba")
		// only the input guardrail ran; the greeting agent has no output guardrail
		assert.Equal(t, 1, guard.Calls())
	})

	t.Run("output guardrail", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").
			EnqueueText(`{"is_bank_related": true}`).
			EnqueueText(`{"is_bank_related": false, "reasoning": "poem"}`)
		main := model.NewMockModel("main", "mock").EnqueueText("Roses are red")

		res := run(t, build(t, "minibank", guard), main, "Tell me about my account, in verse")

		require.True(t, res.Halted())
		tripped := res.Tripped()
		require.Len(t, tripped, 1)
		assert.Equal(t, "bank_related_output", tripped[0].Guardrail)
		assert.Len(t, res.Verdicts, 2)
	})

	t.Run("balance lookup", func(t *testing.T) {
		guard := model.NewMockModel("guard", "mock").
			EnqueueText(`{"is_bank_related": true}`).
			EnqueueText(`{"is_bank_related": true}`)
		main := model.NewMockModel("main", "mock").
			EnqueueCalls(call("check_balance", `{"account_number":"123456789"}`)).
			EnqueueText("The balance is $5,000.")

		res := run(t, build(t, "minibank", guard), main, "What is the balance of account 123456789?")

		require.True(t, res.Done(), "failure: %v", res.Failure)
		resp := main.Requests()[1].Contents[2].FunctionResponses()
		assert.Equal(t, "The balance of account 123456789 is $5,000", resp[0].Response)
	})
}
