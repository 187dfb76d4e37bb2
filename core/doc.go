/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package core provides the core gear for catalog-driven behaviors.
// A Behavior is a declarative state machine over declared events,
// with transitions guarded by expressions and carrying ordered effect
// instructions.
//
// The primary type is Behavior, and the primary method is Dispatch().
// A Behavior specifies how to move an instance State from one machine
// state to another when an event arrives.  A State is a machine state
// name, the activation config, and the instance's entity data.
//
// Guards and effects are expressions (see Expr) in a small
// S-expression language.  Guards are pure: they may only call
// operators from the pure layer of the registry.  Effects may also
// call effect operators, which never touch the world directly;
// instead they route through the host's Sinks and EntityStore.  The
// engine computes what should happen, and the host makes it so.
//
// Effects can emit events.  An emitted event that the machine
// declares joins a FIFO queue, and Dispatch drains the queue before
// returning, up to Control.Limit hops.  The record of one dispatch is
// a Cascade.
//
// To use this package, decode a Behavior (see the catalog package),
// Validate() it, make a State with NewState(), and Dispatch() events
// at it.
//
// See https://github.com/Comcast/bearings for an overview.
package core
