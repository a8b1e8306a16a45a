// Package agent manages the engine's identity.
//
// A Configurator resolves a provider/model pair from the settings file into a
// concrete model, installs it on the engine together with the credential and
// resets the conversation. Failures never propagate: they leave the engine
// unconfigured and are reported through Status.
package agent
