package modsys

// AssertJS is the source of the `@kedo/assert` standard library module,
// grounded on original_source/src/std_modules.rs's `@kedo/assert` entry:
// a small Node-style assertion module bundled as plain JS text rather
// than implemented as a native op, exercising the source-provided (not
// synthetic) half of the module system spec.md §8 scenario 4 ("module
// cache identity") runs against.
const AssertJS = `
function AssertionError(message, actual, expected, operator) {
	var err = new Error(message);
	err.name = 'AssertionError';
	err.actual = actual;
	err.expected = expected;
	err.operator = operator;
	return err;
}

function fail(actual, expected, message, operator) {
	throw new AssertionError(
		message || (String(actual) + ' ' + operator + ' ' + String(expected)),
		actual, expected, operator
	);
}

function ok(value, message) {
	if (!value) fail(value, true, message, '==');
}

function equal(actual, expected, message) {
	if (actual != expected) fail(actual, expected, message, '==');
}

function notEqual(actual, expected, message) {
	if (actual == expected) fail(actual, expected, message, '!=');
}

function strictEqual(actual, expected, message) {
	if (actual !== expected) fail(actual, expected, message, '===');
}

function notStrictEqual(actual, expected, message) {
	if (actual === expected) fail(actual, expected, message, '!==');
}

function deepEqual(actual, expected, message) {
	if (!deepEq(actual, expected)) fail(actual, expected, message, 'deepEqual');
}

function deepEq(a, b) {
	if (a === b) return true;
	if (typeof a !== typeof b || a === null || b === null) return false;
	if (typeof a !== 'object') return false;
	if (Array.isArray(a) !== Array.isArray(b)) return false;
	var aKeys = Object.keys(a), bKeys = Object.keys(b);
	if (aKeys.length !== bKeys.length) return false;
	for (var i = 0; i < aKeys.length; i++) {
		var k = aKeys[i];
		if (!Object.prototype.hasOwnProperty.call(b, k)) return false;
		if (!deepEq(a[k], b[k])) return false;
	}
	return true;
}

function throws(fn, message) {
	var threw = false;
	try { fn(); } catch (e) { threw = true; }
	if (!threw) fail(fn, 'a thrown error', message, 'throws');
}

function doesNotThrow(fn, message) {
	try { fn(); } catch (e) { fail(e, 'no thrown error', message, 'doesNotThrow'); }
}

function assert(value, message) { ok(value, message); }
assert.ok = ok;
assert.equal = equal;
assert.notEqual = notEqual;
assert.strictEqual = strictEqual;
assert.notStrictEqual = notStrictEqual;
assert.deepEqual = deepEqual;
assert.throws = throws;
assert.doesNotThrow = doesNotThrow;
assert.fail = fail;
assert.AssertionError = AssertionError;

export default assert;
export { ok, equal, notEqual, strictEqual, notStrictEqual, deepEqual, throws, doesNotThrow, fail, AssertionError };
`
