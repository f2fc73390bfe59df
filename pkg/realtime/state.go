/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package realtime

// State represents the connection state of a channel
type State int

const (
	// StateIdle - no connection and no attempt in flight
	StateIdle State = iota
	// StateConnecting - establishing the underlying connection
	StateConnecting
	// StateOpen - connection established and delivering messages
	StateOpen
	// StateClosing - teardown requested, releasing the connection
	StateClosing
	// StateClosed - terminal; no further connection attempts
	StateClosed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// event is a named input to the channel state machine
type event int

const (
	eventConnect  event = iota // open requested or reconnect timer fired
	eventOpened                // transport established
	eventRetry                 // connection lost or failed, reconnect scheduled
	eventHalt                  // connection ended, no reconnect (normal closure or budget exhausted)
	eventRelease               // owner called Close
	eventReleased              // connection released after Close
)

func (e event) String() string {
	switch e {
	case eventConnect:
		return "connect"
	case eventOpened:
		return "opened"
	case eventRetry:
		return "retry"
	case eventHalt:
		return "halt"
	case eventRelease:
		return "release"
	case eventReleased:
		return "released"
	default:
		return "unknown"
	}
}

var transitions = map[State]map[event]State{
	StateIdle: {
		eventConnect: StateConnecting,
		eventRelease: StateClosing,
	},
	StateConnecting: {
		eventOpened:  StateOpen,
		eventRetry:   StateIdle,
		eventHalt:    StateClosed,
		eventRelease: StateClosing,
	},
	StateOpen: {
		eventRetry:   StateIdle,
		eventHalt:    StateClosed,
		eventRelease: StateClosing,
	},
	StateClosing: {
		eventReleased: StateClosed,
	},
	StateClosed: {
		eventRelease:  StateClosed,
		eventReleased: StateClosed,
	},
}

// transition returns the state reached from s on e, and false when e is not
// accepted in s.
func transition(s State, e event) (State, bool) {
	next, ok := transitions[s][e]
	return next, ok
}
