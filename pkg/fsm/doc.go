// Package fsm implements the control FSM hook (§4.8) and the
// verify-stopped/quiescence algorithm (§4.9): connecting to the
// executor and priming the history cache from its current-state
// enumeration, a bounded reconnect wrapped by a circuit breaker,
// unexpected-disconnect handling, and the shutdown drain that decides
// whether the bridge is safe to exit.
package fsm
