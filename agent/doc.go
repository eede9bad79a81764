// Package agent contains the actor implementations.
//
// BaseActor carries identity (an immutable short id), name, private
// instructions, a public description, a prompt template and the capability
// lists the orchestrator offers during a turn (tools, end-turn tools and
// memories). Its hooks are no-ops. Concrete actors embed it; Agent adds a
// model.
//
// Actors compare by id: use Equal or core.SameActor, and core.ActorSet when
// actors key a collection.
//
// Every actor can run work directly:
//
//	alice := agent.New("Alice", agent.WithInstructions("Be terse."))
//	answer, err := alice.Say(ctx, "What is the capital of France?")
//	result, err := alice.Run(ctx, "List three prime numbers")
package agent
