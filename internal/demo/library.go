package demo

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/guardrail"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/tool"
)

// Member is the cell of the library scenario.
type Member struct {
	Name     string
	MemberID int
	// Allowance is the number of books the member may still borrow.
	Allowance int
}

var validMembers = []int{1001, 1002, 1003}

// LibraryTopic is the verdict of the library topic guardrail.
type LibraryTopic struct {
	IsLibraryRelated bool `json:"is_library_related" jsonschema:"description=True for questions about books, availability or opening hours"`
}

type bookArgs struct {
	BookName string `json:"book_name" jsonschema:"description=Exact title of the book"`
}

type timingsArgs struct {
	Day string `json:"day,omitempty" jsonschema:"description=Day of the week, e.g. Sunday"`
}

// catalog is the in-memory book stock of one library setup.
type catalog struct {
	mu     sync.Mutex
	copies map[string]int
}

func newCatalog() *catalog {
	return &catalog{copies: map[string]int{
		"Atomic Habits":    5,
		"The Great Gatsby": 2,
		"AI Revolution":    0,
	}}
}

func (c *catalog) lookup(title string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.copies[title]
	return n, ok
}

func (c *catalog) take(title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.copies[title]
	if !ok {
		return fmt.Errorf("%q is not in the library records", title)
	}
	if n == 0 {
		return fmt.Errorf("no copies of %q left", title)
	}
	c.copies[title] = n - 1
	return nil
}

func libraryInstruction(m *Member) string {
	return fmt.Sprintf(`You are a helpful library assistant. Address the user by their name: %s.

- If the user asks 'Do you have ...' or 'Is ... available?', use the search_book tool.
- If the user asks 'How many copies...' or 'Check availability', use the check_availability tool.
- If the user asks about library hours, use the library_timings tool.
- If the user wants to borrow a book, use the borrow_book tool.
- If a query combines several of these, use all matching tools and combine their outputs.`, m.Name)
}

var libraryScenario = Scenario{
	Name:        "library",
	Description: "Library assistant with a derived instruction, member gated tools and a borrow allowance",
	Samples: []string{
		"Do you have Atomic Habits and how many copies are available?",
		"Is The Great Gatsby available and what are the library hours?",
		"Please let me borrow The Great Gatsby",
		"Tell me about Python programming.",
	},
	Build: func(d Deps) (*Setup, error) {
		ev, err := guardrail.NewAgentEvaluator[LibraryTopic]("Guardrail Agent", d.GuardModel,
			"Return true if the query is about the library (books, availability, timings). Otherwise false.")
		if err != nil {
			return nil, err
		}
		topic := guardrail.FromAgent("library_related", core.DirectionInput, ev,
			func(v LibraryTopic) bool { return !v.IsLibraryRelated })

		books := newCatalog()

		isMember := tool.When(func(m *Member, _ core.AgentInfo) bool { return slices.Contains(validMembers, m.MemberID) })
		canBorrow := tool.All(isMember, tool.When(func(m *Member, _ core.AgentInfo) bool { return m.Allowance > 0 }))

		searchBook := mustTool(tool.NewTypedTool("search_book",
			"Use this tool when the user asks 'Do you have ...' or 'Is ... available?'",
			func(_ *core.ToolContext, args bookArgs) (any, error) {
				if _, ok := books.lookup(args.BookName); ok {
					return fmt.Sprintf("Yes, '%s' is available in the library.", args.BookName), nil
				}
				return fmt.Sprintf("'%s' is not available in the library.", args.BookName), nil
			},
		))

		checkAvailability := mustTool(tool.NewTypedTool("check_availability",
			"Use this tool when the user asks 'How many copies' or 'Check availability'.",
			func(_ *core.ToolContext, args bookArgs) (any, error) {
				if n, ok := books.lookup(args.BookName); ok {
					return fmt.Sprintf("There are %d copies of '%s' available.", n, args.BookName), nil
				}
				return fmt.Sprintf("'%s' is not found in the library records.", args.BookName), nil
			},
			tool.WithPredicate(isMember),
		))

		borrowBook := mustTool(tool.NewTypedTool("borrow_book",
			"Borrow one copy of a book for the member.",
			func(tc *core.ToolContext, args bookArgs) (any, error) {
				m := tc.Cell().(*Member)
				if err := books.take(args.BookName); err != nil {
					return nil, err
				}
				m.Allowance--
				return fmt.Sprintf("'%s' is checked out to %s. Remaining allowance: %d.", args.BookName, m.Name, m.Allowance), nil
			},
			tool.WithPredicate(canBorrow),
			tool.WithMutating(),
		))

		timings := tool.NewFunctionToolFromStruct("library_timings", "Returns the library opening and closing time", timingsArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				if day, _ := args["day"].(string); strings.EqualFold(day, "sunday") {
					return "The library is closed on Sunday.", nil
				}
				return "The library is open from 9 AM to 6 PM, Monday to Saturday.", nil
			})

		a, err := agent.New("Library Agent", func(o *agent.Options) {
			o.Instruction = agent.DerivedFrom(libraryInstruction, "You are a helpful library assistant.")
			o.Tools = []tool.Tool{searchBook, checkAvailability, borrowBook, timings}
			o.InputGuardrails = []*guardrail.Guardrail{topic}
			o.Settings = model.Settings{Temperature: model.Float(0.2), ToolChoice: model.ToolChoiceAuto}
			o.ToolUseBehavior = agent.RunLLMAgain
		})
		if err != nil {
			return nil, err
		}

		return &Setup{Agent: a, Cell: &Member{Name: "Alishba", MemberID: 1001, Allowance: 1}}, nil
	},
}
