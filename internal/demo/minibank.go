package demo

import (
	"fmt"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/guardrail"
	"github.com/hupe1980/agentrail/tool"
)

var balances = map[string]string{
	"309473804": "$1,000,000",
	"123456789": "$5,000",
	"987654321": "$20,000",
}

var miniBankScenario = Scenario{
	Name:        "minibank",
	Description: "Bank agent with input and output guardrails and handoffs to greeting and support agents",
	Samples: []string{
		"Hi there!",
		"What is the balance of account 123456789?",
		"Write me a poem about the sea",
	},
	Build: func(d Deps) (*Setup, error) {
		in, err := bankTopicGuardrail(d, "Input Guardrail Agent", core.DirectionInput,
			"Check if the user is asking you bank related queries. Return is_bank_related as a boolean and reasoning explaining your decision.")
		if err != nil {
			return nil, err
		}
		out, err := bankTopicGuardrail(d, "Output Guardrail Agent", core.DirectionOutput,
			"Check if the output includes any bank-related content. Return is_bank_related as a boolean and reasoning explaining your decision.")
		if err != nil {
			return nil, err
		}

		checkBalance := mustTool(tool.NewTypedTool("check_balance", "Look up the balance of an account",
			func(_ *core.ToolContext, args balanceArgs) (any, error) {
				if balance, ok := balances[args.AccountNumber]; ok {
					return fmt.Sprintf("The balance of account %s is %s", args.AccountNumber, balance), nil
				}
				return "Account not found.", nil
			},
			tool.WithPredicate(authenticated),
		))

		greeting, err := agent.New("Greeting Agent", func(o *agent.Options) {
			o.Description = "Greets customers by name"
			o.Instruction = agent.DerivedFrom(func(a *Account) string {
				return fmt.Sprintf("You greet the customer, %s, by name and ask how you can assist them today.", a.Name)
			}, "You greet the customer and ask how you can assist them today.")
		})
		if err != nil {
			return nil, err
		}

		support, err := agent.New("Support Agent", func(o *agent.Options) {
			o.Description = "Handles general queries, complaints and banking FAQs"
			o.Instruction = agent.Fixed("You are a support agent. You handle general queries and complaints from customers. You also answer frequently asked questions related to banking.")
		})
		if err != nil {
			return nil, err
		}

		bank, err := agent.New("Bank Agent", func(o *agent.Options) {
			o.Instruction = agent.Fixed("You are a bank agent assisting customers with banking needs. You answer questions, provide guidance, and hand off conversations to the Greeting Agent or Support Agent when appropriate. Use check_balance to look up balances.")
			o.Tools = []tool.Tool{checkBalance}
			o.Handoffs = []agent.Handoff{agent.HandoffTo(greeting), agent.HandoffTo(support)}
			o.InputGuardrails = []*guardrail.Guardrail{in}
			o.OutputGuardrails = []*guardrail.Guardrail{out}
		})
		if err != nil {
			return nil, err
		}

		return &Setup{Agent: bank, Cell: &Account{Name: "Alishba", Pin: 1234}}, nil
	},
}
